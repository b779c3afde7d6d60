package graph

import "context"

// Denylist answers whether a handle, domain or tag may never become a node.
type Denylist interface {
	Contains(name string) bool
}

// EdgeRecord is one edge joined with the source-node counter its weight
// divides by.
type EdgeRecord struct {
	From        string
	To          string
	Count       int64
	Weight      float64
	SourceTotal int64
}

// WeightUpdate sets the derived weight on one edge.
type WeightUpdate struct {
	From   string
	To     string
	Weight float64
}

// Store is the persistence contract for the interaction graph.
//
// UpsertEdge is atomic with respect to the edge count and both endpoint
// counters: a concurrent reader never observes one without the other.
// Connectivity failures are reported as ErrStoreUnavailable and are not
// retried inside the store.
type Store interface {
	// GetOrCreateAccount returns the node for the handle, creating a
	// zero-countered node on first encounter. Creating an account also
	// creates its profile-URL website (when resolvable) and an
	// auto-CITED edge to it. Returns ErrSkipped for denylisted handles.
	GetOrCreateAccount(ctx context.Context, params AccountParams) (*Account, bool, error)

	// GetAccount returns the node or (nil, nil) when absent.
	GetAccount(ctx context.Context, handle string) (*Account, error)

	// GetOrCreateWebsite resolves the URL to a domain node. Returns
	// (nil, nil) — not an error — for malformed URLs, hosts without a
	// public suffix, and denylisted domains.
	GetOrCreateWebsite(ctx context.Context, rawURL string) (*Website, error)

	// GetOrCreateHashtag is a pure upsert, no filtering.
	GetOrCreateHashtag(ctx context.Context, tag string) (*Hashtag, error)

	// UpsertEdge creates the edge with count 1 or increments it, and
	// bumps the directional counters on both endpoints.
	UpsertEdge(ctx context.Context, kind EdgeKind, from, to string) (*Edge, error)

	// AdvanceCursor raises the account's watermark; lower values are
	// ignored so the watermark never decreases.
	AdvanceCursor(ctx context.Context, handle string, lastSeenID int64) error

	AllAccounts(ctx context.Context) ([]*Account, error)
	AllWebsites(ctx context.Context) ([]*Website, error)
	AllHashtags(ctx context.Context) ([]*Hashtag, error)
	AccountCount(ctx context.Context) (int, error)

	// BulkDeleteByDegree deletes nodes of the label whose edge count in
	// the given direction is strictly below the threshold, restricted
	// to nodes with zero outgoing edges. Terminal leaves only; hubs
	// survive regardless of threshold.
	BulkDeleteByDegree(ctx context.Context, label NodeLabel, dir Direction, threshold int) (int, error)

	EdgesByKind(ctx context.Context, kind EdgeKind) ([]EdgeRecord, error)
	ApplyWeights(ctx context.Context, kind EdgeKind, updates []WeightUpdate) error
}
