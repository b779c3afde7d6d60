package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDenylist []string

func (d stubDenylist) Contains(name string) bool {
	for _, entry := range d {
		if strings.EqualFold(entry, name) {
			return true
		}
	}
	return false
}

func newTestStore(denied ...string) *MemoryStore {
	return NewMemoryStore(stubDenylist(denied), nil)
}

func TestGetOrCreateAccountCreatesOnce(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	first, created, err := store.GetOrCreateAccount(ctx, AccountParams{
		Handle:    "alice",
		Followers: 120,
		Posts:     3000,
		Location:  "Lyon",
		Class:     "seed",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", first.Handle)
	assert.Equal(t, 120, first.Followers)

	second, created, err := store.GetOrCreateAccount(ctx, AccountParams{
		Handle:    "alice",
		Followers: 999,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 120, second.Followers, "existing profile fields must not be overwritten")

	count, err := store.AccountCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetOrCreateAccountDenylisted(t *testing.T) {
	store := newTestStore("spambot")
	ctx := context.Background()

	node, created, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "SpamBot"})
	require.ErrorIs(t, err, ErrSkipped)
	assert.Nil(t, node)
	assert.False(t, created)

	count, err := store.AccountCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetOrCreateAccountCitesProfileURL(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, created, err := store.GetOrCreateAccount(ctx, AccountParams{
		Handle:     "alice",
		ProfileURL: "https://example.com/about",
	})
	require.NoError(t, err)
	require.True(t, created)

	sites, err := store.AllWebsites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "example.com", sites[0].Domain)
	assert.Equal(t, int64(1), sites[0].CitedIn)

	records, err := store.EdgesByKind(ctx, Cited)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].From)
	assert.Equal(t, "example.com", records[0].To)
	assert.Equal(t, int64(1), records[0].Count)
}

func TestGetOrCreateWebsiteRejections(t *testing.T) {
	store := newTestStore("tracker.net")
	ctx := context.Background()

	site, err := store.GetOrCreateWebsite(ctx, "not a url at all \x00")
	require.NoError(t, err)
	assert.Nil(t, site)

	site, err = store.GetOrCreateWebsite(ctx, "http://localhost/page")
	require.NoError(t, err)
	assert.Nil(t, site, "hosts without a public suffix are dropped")

	site, err = store.GetOrCreateWebsite(ctx, "https://tracker.net/x")
	require.NoError(t, err)
	assert.Nil(t, site, "denylisted domains are dropped")

	site, err = store.GetOrCreateWebsite(ctx, "https://news.bbc.co.uk/story")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, "bbc.co.uk", site.Domain)
	assert.Equal(t, "co.uk", site.Suffix)
}

func TestGetOrCreateHashtagIsPureUpsert(t *testing.T) {
	store := newTestStore("#elections")
	ctx := context.Background()

	// Hashtags are never filtered, even if the text matches a denylist entry.
	tag, err := store.GetOrCreateHashtag(ctx, "#elections")
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, "#elections", tag.Tag)

	again, err := store.GetOrCreateHashtag(ctx, "#elections")
	require.NoError(t, err)
	assert.Equal(t, tag.Tag, again.Tag)

	tags, err := store.AllHashtags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestUpsertEdgeCountsAndCounters(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "alice"})
	require.NoError(t, err)
	_, _, err = store.GetOrCreateAccount(ctx, AccountParams{Handle: "bob"})
	require.NoError(t, err)

	edge, err := store.UpsertEdge(ctx, Amplified, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, edge.Created)
	assert.Equal(t, int64(1), edge.Count)

	edge, err = store.UpsertEdge(ctx, Amplified, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, edge.Created)
	assert.Equal(t, int64(2), edge.Count)

	alice, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	bob, err := store.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), alice.AmplifiedOut)
	assert.Equal(t, int64(0), alice.AmplifiedIn)
	assert.Equal(t, int64(2), bob.AmplifiedIn)
	assert.Equal(t, int64(0), bob.AmplifiedOut)
}

func TestUpsertEdgeFollowsCounters(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "alice"})
	require.NoError(t, err)
	_, _, err = store.GetOrCreateAccount(ctx, AccountParams{Handle: "carol"})
	require.NoError(t, err)

	_, err = store.UpsertEdge(ctx, Follows, "alice", "carol")
	require.NoError(t, err)

	alice, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	carol, err := store.GetAccount(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.Followed)
	assert.Equal(t, int64(1), carol.Following)
}

func TestUpsertEdgeMissingEndpoint(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "alice"})
	require.NoError(t, err)

	_, err = store.UpsertEdge(ctx, Mentioned, "alice", "ghost")
	assert.Error(t, err)
}

func TestAdvanceCursorIsMonotonic(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "alice"})
	require.NoError(t, err)

	require.NoError(t, store.AdvanceCursor(ctx, "alice", 500))
	require.NoError(t, store.AdvanceCursor(ctx, "alice", 200))

	alice, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), alice.LastSeenID)

	require.NoError(t, store.AdvanceCursor(ctx, "alice", 900))
	alice, err = store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(900), alice.LastSeenID)
}

func TestGetAccountAbsent(t *testing.T) {
	store := newTestStore()
	node, err := store.GetAccount(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestBulkDeleteByDegreeLeavesOnly(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	for _, handle := range []string{"alice", "bob", "carol"} {
		_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: handle})
		require.NoError(t, err)
	}

	// bob: one inbound edge, no outbound. carol: inbound and outbound.
	_, err := store.UpsertEdge(ctx, Mentioned, "alice", "bob")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, Mentioned, "alice", "carol")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, Mentioned, "carol", "alice")
	require.NoError(t, err)

	deleted, err := store.BulkDeleteByDegree(ctx, LabelAccount, Incoming, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	bob, err := store.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, bob)

	carol, err := store.GetAccount(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, carol, "nodes with outgoing edges survive any threshold")

	// bob's inbound edge went with him.
	records, err := store.EdgesByKind(ctx, Mentioned)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEqual(t, "bob", rec.To)
	}
}

func TestBulkDeleteByDegreeHashtagWithCoOccurSurvives(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "alice"})
	require.NoError(t, err)
	_, err = store.GetOrCreateHashtag(ctx, "#a")
	require.NoError(t, err)
	_, err = store.GetOrCreateHashtag(ctx, "#b")
	require.NoError(t, err)

	_, err = store.UpsertEdge(ctx, Hashtagged, "alice", "#a")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, Hashtagged, "alice", "#b")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, CoOccurs, "#a", "#b")
	require.NoError(t, err)

	// #a has an outgoing CO_OCCURS edge, so only #b is a deletable leaf.
	deleted, err := store.BulkDeleteByDegree(ctx, LabelHashtag, Incoming, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	tags, err := store.AllHashtags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "#a", tags[0].Tag)
}

func TestEdgesByKindSourceTotals(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "alice", Followers: 50})
	require.NoError(t, err)
	_, _, err = store.GetOrCreateAccount(ctx, AccountParams{Handle: "bob"})
	require.NoError(t, err)
	_, _, err = store.GetOrCreateAccount(ctx, AccountParams{Handle: "carol"})
	require.NoError(t, err)

	_, err = store.UpsertEdge(ctx, Mentioned, "alice", "bob")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, Mentioned, "alice", "bob")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, Mentioned, "alice", "carol")
	require.NoError(t, err)

	records, err := store.EdgesByKind(ctx, Mentioned)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, int64(3), rec.SourceTotal)
	}

	_, err = store.UpsertEdge(ctx, Follows, "alice", "bob")
	require.NoError(t, err)
	follows, err := store.EdgesByKind(ctx, Follows)
	require.NoError(t, err)
	require.Len(t, follows, 1)
	assert.Equal(t, int64(50), follows[0].SourceTotal, "follow divider is the follower count")
}

func TestApplyWeights(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreateAccount(ctx, AccountParams{Handle: "alice"})
	require.NoError(t, err)
	_, _, err = store.GetOrCreateAccount(ctx, AccountParams{Handle: "bob"})
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, Amplified, "alice", "bob")
	require.NoError(t, err)

	err = store.ApplyWeights(ctx, Amplified, []WeightUpdate{{From: "alice", To: "bob", Weight: 0.25}})
	require.NoError(t, err)

	records, err := store.EdgesByKind(ctx, Amplified)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 0.25, records[0].Weight, 1e-9)
}
