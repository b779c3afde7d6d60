package graph

import (
	"context"
	"fmt"

	"github.com/nschaetti/tanaturf/internal/logger"
)

const weightBatchSize = 500

// WeightEngine derives normalized edge weights from accumulated counters,
// one edge kind at a time. It must not run concurrently with ingestion.
type WeightEngine struct {
	store Store
	log   *logger.Logger
}

func NewWeightEngine(store Store, log *logger.Logger) *WeightEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &WeightEngine{store: store, log: log.With("engine", "weight")}
}

// Run recomputes every edge weight. A zero divider on a node that has an
// outgoing edge is an invariant violation and halts the pass.
func (e *WeightEngine) Run(ctx context.Context) error {
	for _, kind := range AllEdgeKinds {
		if err := e.runKind(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

func (e *WeightEngine) runKind(ctx context.Context, kind EdgeKind) error {
	records, err := e.store.EdgesByKind(ctx, kind)
	if err != nil {
		return fmt.Errorf("weight pass %s: %w", kind, err)
	}

	updates := make([]WeightUpdate, 0, len(records))
	for _, rec := range records {
		if rec.SourceTotal <= 0 {
			return fmt.Errorf("weight pass %s: %s->%s has count %d but source total 0: %w",
				kind, rec.From, rec.To, rec.Count, ErrInconsistentCounter)
		}

		// Attention share for FOLLOWS; count over out-total elsewhere.
		weight := float64(rec.Count) / float64(rec.SourceTotal)
		if kind == Follows {
			weight = 1.0 / float64(rec.SourceTotal)
		}
		updates = append(updates, WeightUpdate{From: rec.From, To: rec.To, Weight: weight})
	}

	for start := 0; start < len(updates); start += weightBatchSize {
		end := start + weightBatchSize
		if end > len(updates) {
			end = len(updates)
		}
		if err := e.store.ApplyWeights(ctx, kind, updates[start:end]); err != nil {
			return fmt.Errorf("weight pass %s: %w", kind, err)
		}
	}

	e.log.Info("weighted edges", "kind", kind, "edges", len(updates))
	return nil
}
