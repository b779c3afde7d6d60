package crawl

import (
	"context"
	"errors"
	"math/rand"

	"github.com/nschaetti/tanaturf/internal/graph"
	"github.com/nschaetti/tanaturf/internal/logger"
)

// FollowStats summarizes one follow-ingestion pass.
type FollowStats struct {
	Accounts int
	Edges    int
	Failed   int
}

// FollowIngester walks each known account's follower list and records a
// FOLLOWS edge from the account to every follower admitted to the graph.
type FollowIngester struct {
	platform Platform
	store    graph.Store
	filters  Filters
	log      *logger.Logger

	Progress func(handle string)
}

func NewFollowIngester(platform Platform, store graph.Store, filters Filters, log *logger.Logger) *FollowIngester {
	if log == nil {
		log = logger.Nop()
	}
	return &FollowIngester{
		platform: platform,
		store:    store,
		filters:  filters,
		log:      log.With("ingester", "follow"),
	}
}

func (e *FollowIngester) Run(ctx context.Context) (FollowStats, error) {
	accounts, err := e.store.AllAccounts(ctx)
	if err != nil {
		return FollowStats{}, err
	}
	rand.Shuffle(len(accounts), func(i, j int) {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	})

	var stats FollowStats
	for _, acct := range accounts {
		if e.Progress != nil {
			e.Progress(acct.Handle)
		}

		edges, err := e.ingestFollowers(ctx, acct.Handle)
		stats.Edges += edges
		if err != nil {
			if errors.Is(err, graph.ErrStoreUnavailable) || errors.Is(err, context.Canceled) {
				return stats, err
			}
			stats.Failed++
			e.log.Warn("follower crawl failed", "handle", acct.Handle, "error", err)
			continue
		}
		stats.Accounts++
		e.log.Info("done with account", "handle", acct.Handle, "edges", edges)
	}
	return stats, nil
}

func (e *FollowIngester) ingestFollowers(ctx context.Context, handle string) (int, error) {
	pager := e.platform.Followers(handle)
	edges := 0

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return edges, err
		}
		if len(page) == 0 {
			return edges, nil
		}

		for i := range page {
			follower := &page[i]
			ok, err := ensureAccount(ctx, e.store, &e.filters, follower, "")
			if err != nil {
				return edges, err
			}
			if !ok {
				continue
			}
			if _, err := e.store.UpsertEdge(ctx, graph.Follows, handle, follower.Handle); err != nil {
				return edges, err
			}
			edges++
		}
	}
}
