package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nschaetti/tanaturf/internal/logger"
	"github.com/nschaetti/tanaturf/internal/webdomain"
)

// Neo4jStore persists the graph in Neo4j. All mutations run inside
// managed write transactions so the edge count and the endpoint counters
// move together.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	denylist Denylist
	log      *logger.Logger
}

func NewNeo4jStore(ctx context.Context, uri, user, password, database string, denylist Denylist, log *logger.Logger) (*Neo4jStore, error) {
	if log == nil {
		log = logger.Nop()
	}

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %v: %w", err, ErrStoreUnavailable)
	}

	s := &Neo4jStore{
		driver:   driver,
		database: database,
		denylist: denylist,
		log:      log.With("store", "neo4j"),
	}
	s.initSchema(ctx)
	return s, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// initSchema creates uniqueness constraints, best-effort; restricted
// users may not be allowed to.
func (s *Neo4jStore) initSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range []string{
		`CREATE CONSTRAINT account_handle_unique IF NOT EXISTS FOR (a:Account) REQUIRE a.handle IS UNIQUE`,
		`CREATE CONSTRAINT website_domain_unique IF NOT EXISTS FOR (w:Website) REQUIRE w.domain IS UNIQUE`,
		`CREATE CONSTRAINT hashtag_tag_unique IF NOT EXISTS FOR (h:Hashtag) REQUIRE h.tag IS UNIQUE`,
	} {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			s.log.Warn("schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func storeErr(op string, err error) error {
	return fmt.Errorf("neo4j %s: %v: %w", op, err, ErrStoreUnavailable)
}

func (s *Neo4jStore) GetOrCreateAccount(ctx context.Context, params AccountParams) (*Account, bool, error) {
	if s.denylist != nil && s.denylist.Contains(params.Handle) {
		return nil, false, fmt.Errorf("account %s: %w", params.Handle, ErrSkipped)
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (a:Account {handle: $handle})
ON CREATE SET a.followers_count = $followers,
              a.posts_count = $posts,
              a.profile_url = $url,
              a.location = $location,
              a.class = $class,
              a.amplified_out = 0, a.amplified_in = 0,
              a.cited_out = 0, a.cited_in = 0,
              a.mentioned_out = 0, a.mentioned_in = 0,
              a.hashtagged_out = 0,
              a.followed = 0, a.following = 0,
              a.last_seen_id = 0,
              a.is_new = true
WITH a, coalesce(a.is_new, false) AS created
REMOVE a.is_new
RETURN a, created
`, map[string]any{
			"handle":    params.Handle,
			"followers": params.Followers,
			"posts":     params.Posts,
			"url":       params.ProfileURL,
			"location":  params.Location,
			"class":     params.Class,
		})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, false, storeErr("get or create account", err)
	}

	record := result.(*neo4j.Record)
	node, _ := record.Get("a")
	createdVal, _ := record.Get("created")
	created := createdVal.(bool)
	account := accountFromProps(node.(neo4j.Node).Props)

	if created {
		s.log.Info("new account node", "handle", params.Handle)

		// A fresh account cites its own homepage.
		if params.ProfileURL != "" {
			site, err := s.GetOrCreateWebsite(ctx, params.ProfileURL)
			if err != nil {
				return nil, false, err
			}
			if site != nil {
				if _, err := s.UpsertEdge(ctx, Cited, params.Handle, site.Domain); err != nil {
					return nil, false, err
				}
			}
		}
	}

	return account, created, nil
}

func (s *Neo4jStore) GetAccount(ctx context.Context, handle string) (*Account, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Account {handle: $handle}) RETURN a`,
			map[string]any{"handle": handle})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeErr("get account", err)
	}

	records := result.([]*neo4j.Record)
	if len(records) == 0 {
		return nil, nil
	}
	node, _ := records[0].Get("a")
	return accountFromProps(node.(neo4j.Node).Props), nil
}

func (s *Neo4jStore) GetOrCreateWebsite(ctx context.Context, rawURL string) (*Website, error) {
	d, err := webdomain.Parse(rawURL)
	if err != nil {
		return nil, nil
	}
	if s.denylist != nil && s.denylist.Contains(d.Name) {
		return nil, nil
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (w:Website {domain: $domain})
ON CREATE SET w.suffix = $suffix, w.cited_in = 0, w.is_new = true
WITH w, coalesce(w.is_new, false) AS created
REMOVE w.is_new
RETURN w, created
`, map[string]any{"domain": d.Name, "suffix": d.Suffix})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, storeErr("get or create website", err)
	}

	record := result.(*neo4j.Record)
	node, _ := record.Get("w")
	if createdVal, _ := record.Get("created"); createdVal.(bool) {
		s.log.Info("new website node", "domain", d.Name, "suffix", d.Suffix)
	}
	return websiteFromProps(node.(neo4j.Node).Props), nil
}

func (s *Neo4jStore) GetOrCreateHashtag(ctx context.Context, tag string) (*Hashtag, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (h:Hashtag {tag: $tag})
ON CREATE SET h.hashtagged_in = 0, h.cooccur_out = 0, h.cooccur_in = 0, h.is_new = true
WITH h, coalesce(h.is_new, false) AS created
REMOVE h.is_new
RETURN h, created
`, map[string]any{"tag": tag})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, storeErr("get or create hashtag", err)
	}

	record := result.(*neo4j.Record)
	node, _ := record.Get("h")
	if createdVal, _ := record.Get("created"); createdVal.(bool) {
		s.log.Info("new hashtag node", "tag", tag)
	}
	return hashtagFromProps(node.(neo4j.Node).Props), nil
}

func (s *Neo4jStore) UpsertEdge(ctx context.Context, kind EdgeKind, from, to string) (*Edge, error) {
	fromLabel, toLabel := kind.Endpoints()
	cp := edgeCounters[kind]

	// Labels, relationship types and property names come from fixed
	// internal tables; only values are parameterized.
	cypher := fmt.Sprintf(`
MATCH (a:%s {%s: $from})
MATCH (b:%s {%s: $to})
MERGE (a)-[r:%s]->(b)
ON CREATE SET r.count = 1, r.is_new = true
ON MATCH SET r.count = r.count + 1
SET a.%s = coalesce(a.%s, 0) + 1,
    b.%s = coalesce(b.%s, 0) + 1
WITH r, coalesce(r.is_new, false) AS created
REMOVE r.is_new
RETURN r.count AS count, created
`, fromLabel, keyProp(fromLabel), toLabel, keyProp(toLabel), kind, cp.out, cp.out, cp.in, cp.in)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"from": from, "to": to})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeErr("upsert edge", err)
	}

	records := result.([]*neo4j.Record)
	if len(records) == 0 {
		return nil, fmt.Errorf("edge %s %s->%s: endpoint node missing", kind, from, to)
	}

	countVal, _ := records[0].Get("count")
	createdVal, _ := records[0].Get("created")
	edge := &Edge{
		Kind:    kind,
		From:    from,
		To:      to,
		Count:   countVal.(int64),
		Created: createdVal.(bool),
	}
	if edge.Created {
		s.log.Info("new edge", "kind", kind, "from", from, "to", to)
	}
	return edge, nil
}

func (s *Neo4jStore) AdvanceCursor(ctx context.Context, handle string, lastSeenID int64) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Account {handle: $handle})
WHERE coalesce(a.last_seen_id, 0) < $id
SET a.last_seen_id = $id
`, map[string]any{"handle": handle, "id": lastSeenID})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return storeErr("advance cursor", err)
	}
	return nil
}

func (s *Neo4jStore) AllAccounts(ctx context.Context) ([]*Account, error) {
	records, err := s.readAll(ctx, `MATCH (a:Account) RETURN a ORDER BY a.handle`, "a")
	if err != nil {
		return nil, storeErr("all accounts", err)
	}
	out := make([]*Account, 0, len(records))
	for _, props := range records {
		out = append(out, accountFromProps(props))
	}
	return out, nil
}

func (s *Neo4jStore) AllWebsites(ctx context.Context) ([]*Website, error) {
	records, err := s.readAll(ctx, `MATCH (w:Website) RETURN w ORDER BY w.domain`, "w")
	if err != nil {
		return nil, storeErr("all websites", err)
	}
	out := make([]*Website, 0, len(records))
	for _, props := range records {
		out = append(out, websiteFromProps(props))
	}
	return out, nil
}

func (s *Neo4jStore) AllHashtags(ctx context.Context) ([]*Hashtag, error) {
	records, err := s.readAll(ctx, `MATCH (h:Hashtag) RETURN h ORDER BY h.tag`, "h")
	if err != nil {
		return nil, storeErr("all hashtags", err)
	}
	out := make([]*Hashtag, 0, len(records))
	for _, props := range records {
		out = append(out, hashtagFromProps(props))
	}
	return out, nil
}

func (s *Neo4jStore) readAll(ctx context.Context, cypher, alias string) ([]map[string]any, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*neo4j.Record)
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		node, _ := record.Get(alias)
		out = append(out, node.(neo4j.Node).Props)
	}
	return out, nil
}

func (s *Neo4jStore) AccountCount(ctx context.Context) (int, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:Account) RETURN count(a) AS n`, nil)
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return 0, storeErr("account count", err)
	}

	n, _ := result.(*neo4j.Record).Get("n")
	return int(n.(int64)), nil
}

func (s *Neo4jStore) BulkDeleteByDegree(ctx context.Context, label NodeLabel, dir Direction, threshold int) (int, error) {
	degreePattern := "()-[]->(n)"
	if dir == Outgoing {
		degreePattern = "(n)-[]->()"
	}
	cypher := fmt.Sprintf(`
MATCH (n:%s)
WHERE COUNT { %s } < $threshold AND COUNT { (n)-[]->() } = 0
DETACH DELETE n
`, label, degreePattern)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"threshold": threshold})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return 0, storeErr("bulk delete", err)
	}

	return result.(neo4j.ResultSummary).Counters().NodesDeleted(), nil
}

func (s *Neo4jStore) EdgesByKind(ctx context.Context, kind EdgeKind) ([]EdgeRecord, error) {
	fromLabel, toLabel := kind.Endpoints()
	cypher := fmt.Sprintf(`
MATCH (a:%s)-[r:%s]->(b:%s)
RETURN a.%s AS from, b.%s AS to,
       coalesce(r.count, 0) AS count,
       coalesce(r.weight, 0.0) AS weight,
       coalesce(a.%s, 0) AS total
ORDER BY from, to
`, fromLabel, kind, toLabel, keyProp(fromLabel), keyProp(toLabel), dividerProp(kind))

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeErr("edges by kind", err)
	}

	records := result.([]*neo4j.Record)
	out := make([]EdgeRecord, 0, len(records))
	for _, record := range records {
		fromVal, _ := record.Get("from")
		toVal, _ := record.Get("to")
		countVal, _ := record.Get("count")
		weightVal, _ := record.Get("weight")
		totalVal, _ := record.Get("total")
		out = append(out, EdgeRecord{
			From:        fromVal.(string),
			To:          toVal.(string),
			Count:       asInt64(countVal),
			Weight:      asFloat64(weightVal),
			SourceTotal: asInt64(totalVal),
		})
	}
	return out, nil
}

func (s *Neo4jStore) ApplyWeights(ctx context.Context, kind EdgeKind, updates []WeightUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	fromLabel, toLabel := kind.Endpoints()
	cypher := fmt.Sprintf(`
UNWIND $updates AS u
MATCH (a:%s {%s: u.from})-[r:%s]->(b:%s {%s: u.to})
SET r.weight = u.weight
`, fromLabel, keyProp(fromLabel), kind, toLabel, keyProp(toLabel))

	rows := make([]map[string]any, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, map[string]any{"from": u.From, "to": u.To, "weight": u.Weight})
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"updates": rows})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return storeErr("apply weights", err)
	}
	return nil
}

func accountFromProps(props map[string]any) *Account {
	return &Account{
		Handle:        asString(props["handle"]),
		Followers:     int(asInt64(props["followers_count"])),
		Posts:         int(asInt64(props["posts_count"])),
		ProfileURL:    asString(props["profile_url"]),
		Location:      asString(props["location"]),
		Class:         asString(props["class"]),
		AmplifiedOut:  asInt64(props["amplified_out"]),
		AmplifiedIn:   asInt64(props["amplified_in"]),
		CitedOut:      asInt64(props["cited_out"]),
		CitedIn:       asInt64(props["cited_in"]),
		MentionedOut:  asInt64(props["mentioned_out"]),
		MentionedIn:   asInt64(props["mentioned_in"]),
		HashtaggedOut: asInt64(props["hashtagged_out"]),
		Followed:      asInt64(props["followed"]),
		Following:     asInt64(props["following"]),
		LastSeenID:    asInt64(props["last_seen_id"]),
	}
}

func websiteFromProps(props map[string]any) *Website {
	return &Website{
		Domain:  asString(props["domain"]),
		Suffix:  asString(props["suffix"]),
		CitedIn: asInt64(props["cited_in"]),
	}
}

func hashtagFromProps(props map[string]any) *Hashtag {
	return &Hashtag{
		Tag:          asString(props["tag"]),
		HashtaggedIn: asInt64(props["hashtagged_in"]),
		CoOccurOut:   asInt64(props["cooccur_out"]),
		CoOccurIn:    asInt64(props["cooccur_in"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
