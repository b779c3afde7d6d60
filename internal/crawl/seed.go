package crawl

import (
	"context"
	"errors"

	"github.com/nschaetti/tanaturf/internal/graph"
	"github.com/nschaetti/tanaturf/internal/logger"
	"github.com/nschaetti/tanaturf/internal/twitter"
)

// SeedAccounts adds operator-chosen handles to the graph, tagged with a
// class label. Seeds bypass the quality filters; unknown or denylisted
// handles are logged and skipped.
func SeedAccounts(ctx context.Context, platform Platform, store graph.Store, handles []string, class string, log *logger.Logger) (int, error) {
	if log == nil {
		log = logger.Nop()
	}

	added := 0
	for _, handle := range handles {
		info, err := platform.LookupAccount(ctx, handle)
		if errors.Is(err, twitter.ErrNotFound) {
			log.Warn("seed not found", "handle", handle)
			continue
		}
		if err != nil {
			return added, err
		}

		_, created, err := store.GetOrCreateAccount(ctx, graph.AccountParams{
			Handle:     info.Handle,
			Followers:  info.Followers,
			Posts:      info.Posts,
			ProfileURL: info.ProfileURL(),
			Location:   info.Location,
			Class:      class,
		})
		if errors.Is(err, graph.ErrSkipped) {
			log.Warn("seed denylisted", "handle", handle)
			continue
		}
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}
