package crawl

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/nschaetti/tanaturf/internal/graph"
	"github.com/nschaetti/tanaturf/internal/logger"
	"github.com/nschaetti/tanaturf/internal/twitter"
)

// InteractionOptions selects which interaction kinds a pass extracts.
type InteractionOptions struct {
	Amplified bool
	Cited     bool
	Mentions  bool
	Hashtags  bool

	// MaxPages bounds how many timeline pages are read per account.
	// Zero means no bound.
	MaxPages int
}

// InteractionStats summarizes one ingestion pass.
type InteractionStats struct {
	Accounts int
	Posts    int
	Failed   int
}

// InteractionIngester walks each known account's timeline since its
// watermark and turns posts into edges. Accounts fail independently; a
// failed account keeps its old watermark and is retried on the next run.
type InteractionIngester struct {
	platform Platform
	store    graph.Store
	filters  Filters
	opts     InteractionOptions
	log      *logger.Logger

	// Progress, when set, is called before each account is crawled.
	Progress func(handle string)
}

func NewInteractionIngester(platform Platform, store graph.Store, filters Filters, opts InteractionOptions, log *logger.Logger) *InteractionIngester {
	if log == nil {
		log = logger.Nop()
	}
	return &InteractionIngester{
		platform: platform,
		store:    store,
		filters:  filters,
		opts:     opts,
		log:      log.With("ingester", "interactions"),
	}
}

// Run crawls the current population snapshot. Accounts created during the
// pass are picked up on the next run, not this one.
func (e *InteractionIngester) Run(ctx context.Context) (InteractionStats, error) {
	accounts, err := e.store.AllAccounts(ctx)
	if err != nil {
		return InteractionStats{}, err
	}
	// Random order spreads coverage when a run is cut short.
	rand.Shuffle(len(accounts), func(i, j int) {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	})

	var stats InteractionStats
	for _, acct := range accounts {
		if e.Progress != nil {
			e.Progress(acct.Handle)
		}
		e.log.Debug("starting account", "handle", acct.Handle, "watermark", acct.LastSeenID)

		posts, err := e.ingestAccount(ctx, acct)
		stats.Posts += posts
		if err != nil {
			if errors.Is(err, graph.ErrStoreUnavailable) || errors.Is(err, context.Canceled) {
				return stats, err
			}
			stats.Failed++
			e.log.Warn("account crawl failed", "handle", acct.Handle, "error", err)
			continue
		}
		stats.Accounts++
		e.log.Info("done with account", "handle", acct.Handle, "posts", posts)
	}
	return stats, nil
}

// ingestAccount reads the timeline newest-first until the watermark, a
// page bound or exhaustion, then advances the watermark. The watermark
// moves only when the account completes without error.
func (e *InteractionIngester) ingestAccount(ctx context.Context, acct *graph.Account) (int, error) {
	pager := e.platform.Timeline(acct.Handle)
	maxSeen := acct.LastSeenID
	posts := 0
	pages := 0

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return posts, err
		}
		if len(page) == 0 {
			break
		}

		reachedWatermark := false
		for i := range page {
			post := &page[i]
			if post.ID <= acct.LastSeenID {
				reachedWatermark = true
				break
			}
			if post.ID > maxSeen {
				maxSeen = post.ID
			}
			if err := e.ingestPost(ctx, acct.Handle, post); err != nil {
				return posts, err
			}
			posts++
		}
		if reachedWatermark {
			break
		}

		pages++
		if e.opts.MaxPages > 0 && pages >= e.opts.MaxPages {
			break
		}
	}

	if maxSeen > acct.LastSeenID {
		if err := e.store.AdvanceCursor(ctx, acct.Handle, maxSeen); err != nil {
			return posts, err
		}
	}
	return posts, nil
}

// ingestPost classifies one post. A repost produces a single AMPLIFIED
// edge toward the original author and nothing else; only original posts
// go through the content sub-passes.
func (e *InteractionIngester) ingestPost(ctx context.Context, handle string, post *twitter.Post) error {
	if post.RepostOf != nil {
		if !e.opts.Amplified {
			return nil
		}
		author := post.RepostOf.Author
		if strings.EqualFold(author.Handle, handle) {
			return nil
		}
		ok, err := e.ensureAccount(ctx, &author)
		if err != nil || !ok {
			return err
		}
		_, err = e.store.UpsertEdge(ctx, graph.Amplified, handle, author.Handle)
		return err
	}

	if e.opts.Amplified {
		if err := e.ingestReposters(ctx, handle, post.ID); err != nil {
			return err
		}
	}
	if e.opts.Cited {
		if err := e.ingestCitations(ctx, handle, post); err != nil {
			return err
		}
	}
	if e.opts.Mentions {
		if err := e.ingestMentions(ctx, handle, post); err != nil {
			return err
		}
	}
	if e.opts.Hashtags {
		if err := e.ingestHashtags(ctx, handle, post); err != nil {
			return err
		}
	}
	return nil
}

func (e *InteractionIngester) ingestReposters(ctx context.Context, handle string, postID int64) error {
	reposters, err := e.platform.Reposts(ctx, postID)
	if errors.Is(err, twitter.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for i := range reposters {
		reposter := &reposters[i]
		if strings.EqualFold(reposter.Handle, handle) {
			continue
		}
		ok, err := e.ensureAccount(ctx, reposter)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := e.store.UpsertEdge(ctx, graph.Amplified, reposter.Handle, handle); err != nil {
			return err
		}
	}
	return nil
}

func (e *InteractionIngester) ingestCitations(ctx context.Context, handle string, post *twitter.Post) error {
	seen := make(map[string]bool)
	for _, u := range post.Entities.URLs {
		if seen[u.ExpandedURL] {
			continue
		}
		seen[u.ExpandedURL] = true

		site, err := e.store.GetOrCreateWebsite(ctx, u.ExpandedURL)
		if err != nil {
			return err
		}
		if site == nil {
			continue
		}
		if _, err := e.store.UpsertEdge(ctx, graph.Cited, handle, site.Domain); err != nil {
			return err
		}
	}
	return nil
}

func (e *InteractionIngester) ingestMentions(ctx context.Context, handle string, post *twitter.Post) error {
	for _, m := range post.Entities.Mentions {
		if strings.EqualFold(m.Handle, handle) {
			continue
		}
		ok, err := e.ensureAccountByHandle(ctx, m.Handle)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := e.store.UpsertEdge(ctx, graph.Mentioned, handle, m.Handle); err != nil {
			return err
		}
	}
	return nil
}

// ingestHashtags records tag usage plus a CO_OCCURS edge for every
// ordered pair of distinct tags on the post.
func (e *InteractionIngester) ingestHashtags(ctx context.Context, handle string, post *twitter.Post) error {
	seen := make(map[string]bool)
	var tags []string
	for _, h := range post.Entities.Hashtags {
		tag := "#" + strings.ToLower(h.Text)
		if tag == "#" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, tag := range tags {
		if _, err := e.store.GetOrCreateHashtag(ctx, tag); err != nil {
			return err
		}
		if _, err := e.store.UpsertEdge(ctx, graph.Hashtagged, handle, tag); err != nil {
			return err
		}
	}

	for _, from := range tags {
		for _, to := range tags {
			if from == to {
				continue
			}
			if _, err := e.store.UpsertEdge(ctx, graph.CoOccurs, from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureAccount admits a discovered account to the graph when it already
// exists, or when it passes the quality filters and the population cap.
// Returns false for accounts that may not become nodes.
func (e *InteractionIngester) ensureAccount(ctx context.Context, info *twitter.AccountInfo) (bool, error) {
	return ensureAccount(ctx, e.store, &e.filters, info, "")
}

// ensureAccountByHandle is ensureAccount for references that carry only a
// handle; unknown handles cost a profile lookup.
func (e *InteractionIngester) ensureAccountByHandle(ctx context.Context, handle string) (bool, error) {
	node, err := e.store.GetAccount(ctx, handle)
	if err != nil {
		return false, err
	}
	if node != nil {
		return true, nil
	}

	info, err := e.platform.LookupAccount(ctx, handle)
	if errors.Is(err, twitter.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", handle, err)
	}
	return e.ensureAccount(ctx, info)
}

func ensureAccount(ctx context.Context, store graph.Store, filters *Filters, info *twitter.AccountInfo, class string) (bool, error) {
	node, err := store.GetAccount(ctx, info.Handle)
	if err != nil {
		return false, err
	}
	if node != nil {
		return true, nil
	}

	if !filters.PassesAccountFilter(info.Followers, info.Posts) {
		return false, nil
	}
	count, err := store.AccountCount(ctx)
	if err != nil {
		return false, err
	}
	if filters.LimitReached(count) {
		return false, nil
	}

	_, _, err = store.GetOrCreateAccount(ctx, graph.AccountParams{
		Handle:     info.Handle,
		Followers:  info.Followers,
		Posts:      info.Posts,
		ProfileURL: info.ProfileURL(),
		Location:   info.Location,
		Class:      class,
	})
	if errors.Is(err, graph.ErrSkipped) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
