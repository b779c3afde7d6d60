package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nschaetti/tanaturf/internal/logger"
	"github.com/nschaetti/tanaturf/internal/webdomain"
)

func edgeKey(kind EdgeKind, from, to string) string {
	return fmt.Sprintf("%s|%s|%s", kind, from, to)
}

// MemoryStore keeps the whole graph in process memory behind one lock.
// It implements the same contract as the Neo4j store and backs the test
// suite and offline runs.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	websites map[string]*Website
	hashtags map[string]*Hashtag
	edges    map[string]*Edge
	denylist Denylist
	log      *logger.Logger
}

func NewMemoryStore(denylist Denylist, log *logger.Logger) *MemoryStore {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryStore{
		accounts: make(map[string]*Account),
		websites: make(map[string]*Website),
		hashtags: make(map[string]*Hashtag),
		edges:    make(map[string]*Edge),
		denylist: denylist,
		log:      log.With("store", "memory"),
	}
}

func (s *MemoryStore) GetOrCreateAccount(ctx context.Context, params AccountParams) (*Account, bool, error) {
	if s.denylist != nil && s.denylist.Contains(params.Handle) {
		return nil, false, fmt.Errorf("account %s: %w", params.Handle, ErrSkipped)
	}

	s.mu.Lock()
	if existing, ok := s.accounts[params.Handle]; ok {
		out := *existing
		s.mu.Unlock()
		return &out, false, nil
	}

	node := &Account{
		Handle:     params.Handle,
		Followers:  params.Followers,
		Posts:      params.Posts,
		ProfileURL: params.ProfileURL,
		Location:   params.Location,
		Class:      params.Class,
	}
	s.accounts[params.Handle] = node
	s.mu.Unlock()

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

	s.mu.RLock()
	out := *s.accounts[params.Handle]
	s.mu.RUnlock()
	return &out, true, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, handle string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.accounts[handle]
	if !ok {
		return nil, nil
	}
	out := *node
	return &out, nil
}

func (s *MemoryStore) GetOrCreateWebsite(_ context.Context, rawURL string) (*Website, error) {
	d, err := webdomain.Parse(rawURL)
	if err != nil {
		return nil, nil
	}
	if s.denylist != nil && s.denylist.Contains(d.Name) {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.websites[d.Name]; ok {
		out := *existing
		return &out, nil
	}

	node := &Website{Domain: d.Name, Suffix: d.Suffix}
	s.websites[d.Name] = node
	s.log.Info("new website node", "domain", d.Name, "suffix", d.Suffix)
	out := *node
	return &out, nil
}

func (s *MemoryStore) GetOrCreateHashtag(_ context.Context, tag string) (*Hashtag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.hashtags[tag]; ok {
		out := *existing
		return &out, nil
	}

	node := &Hashtag{Tag: tag}
	s.hashtags[tag] = node
	s.log.Info("new hashtag node", "tag", tag)
	out := *node
	return &out, nil
}

func (s *MemoryStore) UpsertEdge(_ context.Context, kind EdgeKind, from, to string) (*Edge, error) {
	fromLabel, toLabel := kind.Endpoints()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nodeExists(fromLabel, from) {
		return nil, fmt.Errorf("edge %s %s->%s: missing source node", kind, from, to)
	}
	if !s.nodeExists(toLabel, to) {
		return nil, fmt.Errorf("edge %s %s->%s: missing target node", kind, from, to)
	}

	key := edgeKey(kind, from, to)
	edge, exists := s.edges[key]
	if !exists {
		edge = &Edge{Kind: kind, From: from, To: to, Count: 1}
		s.edges[key] = edge
		s.log.Info("new edge", "kind", kind, "from", from, "to", to)
	} else {
		edge.Count++
	}

	s.bumpCounters(kind, from, to)

	out := *edge
	out.Created = !exists
	return &out, nil
}

func (s *MemoryStore) nodeExists(label NodeLabel, key string) bool {
	switch label {
	case LabelWebsite:
		_, ok := s.websites[key]
		return ok
	case LabelHashtag:
		_, ok := s.hashtags[key]
		return ok
	default:
		_, ok := s.accounts[key]
		return ok
	}
}

// bumpCounters keeps the node-side directional totals in lockstep with
// the edge count. Caller holds the write lock.
func (s *MemoryStore) bumpCounters(kind EdgeKind, from, to string) {
	switch kind {
	case Amplified:
		s.accounts[from].AmplifiedOut++
		s.accounts[to].AmplifiedIn++
	case Cited:
		s.accounts[from].CitedOut++
		s.websites[to].CitedIn++
	case Mentioned:
		s.accounts[from].MentionedOut++
		s.accounts[to].MentionedIn++
	case Hashtagged:
		s.accounts[from].HashtaggedOut++
		s.hashtags[to].HashtaggedIn++
	case CoOccurs:
		s.hashtags[from].CoOccurOut++
		s.hashtags[to].CoOccurIn++
	case Follows:
		s.accounts[from].Followed++
		s.accounts[to].Following++
	}
}

func (s *MemoryStore) AdvanceCursor(_ context.Context, handle string, lastSeenID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.accounts[handle]
	if !ok {
		return fmt.Errorf("advance cursor: unknown account %s", handle)
	}
	if lastSeenID > node.LastSeenID {
		node.LastSeenID = lastSeenID
	}
	return nil
}

func (s *MemoryStore) AllAccounts(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, node := range s.accounts {
		copied := *node
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (s *MemoryStore) AllWebsites(_ context.Context) ([]*Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Website, 0, len(s.websites))
	for _, node := range s.websites {
		copied := *node
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (s *MemoryStore) AllHashtags(_ context.Context) ([]*Hashtag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Hashtag, 0, len(s.hashtags))
	for _, node := range s.hashtags {
		copied := *node
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (s *MemoryStore) AccountCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

func (s *MemoryStore) BulkDeleteByDegree(_ context.Context, label NodeLabel, dir Direction, threshold int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []string
	for _, key := range s.keysForLabel(label) {
		if s.degree(label, key, Outgoing) != 0 {
			continue
		}
		if s.degree(label, key, dir) < threshold {
			candidates = append(candidates, key)
		}
	}

	for _, key := range candidates {
		s.detachDelete(label, key)
	}
	return len(candidates), nil
}

func (s *MemoryStore) keysForLabel(label NodeLabel) []string {
	var keys []string
	switch label {
	case LabelWebsite:
		for k := range s.websites {
			keys = append(keys, k)
		}
	case LabelHashtag:
		for k := range s.hashtags {
			keys = append(keys, k)
		}
	default:
		for k := range s.accounts {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *MemoryStore) degree(label NodeLabel, key string, dir Direction) int {
	n := 0
	for _, edge := range s.edges {
		fromLabel, toLabel := edge.Kind.Endpoints()
		if dir == Incoming && toLabel == label && edge.To == key {
			n++
		}
		if dir == Outgoing && fromLabel == label && edge.From == key {
			n++
		}
	}
	return n
}

func (s *MemoryStore) detachDelete(label NodeLabel, key string) {
	for k, edge := range s.edges {
		fromLabel, toLabel := edge.Kind.Endpoints()
		if (fromLabel == label && edge.From == key) || (toLabel == label && edge.To == key) {
			delete(s.edges, k)
		}
	}
	switch label {
	case LabelWebsite:
		delete(s.websites, key)
	case LabelHashtag:
		delete(s.hashtags, key)
	default:
		delete(s.accounts, key)
	}
}

func (s *MemoryStore) EdgesByKind(_ context.Context, kind EdgeKind) ([]EdgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EdgeRecord
	for _, edge := range s.edges {
		if edge.Kind != kind {
			continue
		}
		out = append(out, EdgeRecord{
			From:        edge.From,
			To:          edge.To,
			Count:       edge.Count,
			Weight:      edge.Weight,
			SourceTotal: s.sourceTotal(kind, edge.From),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out, nil
}

func (s *MemoryStore) sourceTotal(kind EdgeKind, from string) int64 {
	if kind == CoOccurs {
		if h, ok := s.hashtags[from]; ok {
			return h.CoOccurOut
		}
		return 0
	}

	node, ok := s.accounts[from]
	if !ok {
		return 0
	}
	switch kind {
	case Amplified:
		return node.AmplifiedOut
	case Cited:
		return node.CitedOut
	case Mentioned:
		return node.MentionedOut
	case Hashtagged:
		return node.HashtaggedOut
	case Follows:
		return int64(node.Followers)
	}
	return 0
}

func (s *MemoryStore) ApplyWeights(_ context.Context, kind EdgeKind, updates []WeightUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		if edge, ok := s.edges[edgeKey(kind, u.From, u.To)]; ok {
			edge.Weight = u.Weight
		}
	}
	return nil
}
