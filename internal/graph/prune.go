package graph

import (
	"context"
	"fmt"

	"github.com/nschaetti/tanaturf/internal/logger"
)

// PruneThresholds are the per-label minimum inbound-link counts a node
// must meet to survive a pruning pass.
type PruneThresholds struct {
	MinAccountLinks int
	MinWebsiteLinks int
	MinHashtagLinks int
}

// PruneResult reports how many nodes each sub-pass removed.
type PruneResult struct {
	Accounts int
	Websites int
	Hashtags int
}

// PruningEngine removes structurally insignificant leaf nodes. One run
// does not cascade; the operator re-runs it to prune newly exposed
// leaves.
type PruningEngine struct {
	store Store
	log   *logger.Logger
}

func NewPruningEngine(store Store, log *logger.Logger) *PruningEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &PruningEngine{store: store, log: log.With("engine", "prune")}
}

// Run executes the three sub-passes. All three complete before any
// caller re-reads the population.
func (e *PruningEngine) Run(ctx context.Context, t PruneThresholds) (PruneResult, error) {
	var result PruneResult

	passes := []struct {
		label     NodeLabel
		threshold int
		deleted   *int
	}{
		{LabelAccount, t.MinAccountLinks, &result.Accounts},
		{LabelWebsite, t.MinWebsiteLinks, &result.Websites},
		{LabelHashtag, t.MinHashtagLinks, &result.Hashtags},
	}

	for _, pass := range passes {
		n, err := e.store.BulkDeleteByDegree(ctx, pass.label, Incoming, pass.threshold)
		if err != nil {
			return result, fmt.Errorf("prune %s: %w", pass.label, err)
		}
		*pass.deleted = n
		e.log.Info("pruned nodes", "label", pass.label, "deleted", n, "threshold", pass.threshold)
	}

	return result, nil
}
