package crawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nschaetti/tanaturf/internal/graph"
	"github.com/nschaetti/tanaturf/internal/twitter"
)

type fakeTimeline struct {
	pages [][]twitter.Post
	err   error
}

func (t *fakeTimeline) Next(_ context.Context) ([]twitter.Post, error) {
	if len(t.pages) == 0 {
		if t.err != nil {
			err := t.err
			t.err = nil
			return nil, err
		}
		return nil, nil
	}
	page := t.pages[0]
	t.pages = t.pages[1:]
	return page, nil
}

type fakeFollowers struct {
	pages [][]twitter.AccountInfo
}

func (f *fakeFollowers) Next(_ context.Context) ([]twitter.AccountInfo, error) {
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

type fakePlatform struct {
	accounts    map[string]twitter.AccountInfo
	timelines   map[string][][]twitter.Post
	timelineErr map[string]error
	reposters   map[int64][]twitter.AccountInfo
	followers   map[string][][]twitter.AccountInfo
}

func (p *fakePlatform) LookupAccount(_ context.Context, handle string) (*twitter.AccountInfo, error) {
	info, ok := p.accounts[handle]
	if !ok {
		return nil, twitter.ErrNotFound
	}
	return &info, nil
}

func (p *fakePlatform) Timeline(handle string) PostSource {
	return &fakeTimeline{pages: p.timelines[handle], err: p.timelineErr[handle]}
}

func (p *fakePlatform) Followers(handle string) AccountSource {
	return &fakeFollowers{pages: p.followers[handle]}
}

func (p *fakePlatform) Reposts(_ context.Context, postID int64) ([]twitter.AccountInfo, error) {
	return p.reposters[postID], nil
}

type allowAll struct{}

func (allowAll) Contains(string) bool { return false }

func account(handle string, followers, posts int) twitter.AccountInfo {
	return twitter.AccountInfo{Handle: handle, Followers: followers, Posts: posts}
}

func seedNode(t *testing.T, store graph.Store, handle string, followers int) {
	t.Helper()
	_, _, err := store.GetOrCreateAccount(context.Background(), graph.AccountParams{
		Handle:    handle,
		Followers: followers,
	})
	require.NoError(t, err)
}

func edgeCount(t *testing.T, store graph.Store, kind graph.EdgeKind, from, to string) int64 {
	t.Helper()
	records, err := store.EdgesByKind(context.Background(), kind)
	require.NoError(t, err)
	for _, rec := range records {
		if rec.From == from && rec.To == to {
			return rec.Count
		}
	}
	return 0
}

func TestInteractionIngesterExtractsAllKinds(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)

	// Newest first: a repost of carol's post, then an original post with
	// two identical links, two hashtags and a mention of bob.
	original := twitter.Post{ID: 20, Text: "read this #A #B @bob https://example.com/x"}
	original.Entities.URLs = []twitter.URLEntity{
		{ExpandedURL: "https://example.com/x"},
		{ExpandedURL: "https://example.com/y"},
	}
	original.Entities.Mentions = []twitter.MentionEntity{{Handle: "bob"}}
	original.Entities.Hashtags = []twitter.HashtagEntity{{Text: "A"}, {Text: "B"}}

	repost := twitter.Post{ID: 30, Text: "RT @carol: hot take"}
	repost.RepostOf = &twitter.Post{ID: 5, Author: account("carol", 10, 10)}
	// Entities on a repost must be ignored.
	repost.Entities.URLs = []twitter.URLEntity{{ExpandedURL: "https://ignored.org/z"}}

	platform := &fakePlatform{
		accounts: map[string]twitter.AccountInfo{
			"bob": account("bob", 50, 500),
		},
		timelines: map[string][][]twitter.Post{
			"alice": {{repost, original}},
		},
		reposters: map[int64][]twitter.AccountInfo{
			20: {account("dave", 40, 400)},
			30: {account("eve", 40, 400)},
		},
	}

	ingester := NewInteractionIngester(platform, store, Filters{}, InteractionOptions{
		Amplified: true,
		Cited:     true,
		Mentions:  true,
		Hashtags:  true,
	}, nil)

	stats, err := ingester.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Accounts)
	assert.Equal(t, 2, stats.Posts)
	assert.Equal(t, 0, stats.Failed)

	assert.Equal(t, int64(1), edgeCount(t, store, graph.Amplified, "alice", "carol"))
	assert.Equal(t, int64(1), edgeCount(t, store, graph.Amplified, "dave", "alice"))
	assert.Equal(t, int64(0), edgeCount(t, store, graph.Amplified, "eve", "alice"),
		"reposters of a repost are the original author's business")

	assert.Equal(t, int64(2), edgeCount(t, store, graph.Cited, "alice", "example.com"),
		"two links to the same domain accumulate on one edge")
	assert.Equal(t, int64(0), edgeCount(t, store, graph.Cited, "alice", "ignored.org"))

	assert.Equal(t, int64(1), edgeCount(t, store, graph.Mentioned, "alice", "bob"))

	assert.Equal(t, int64(1), edgeCount(t, store, graph.Hashtagged, "alice", "#a"))
	assert.Equal(t, int64(1), edgeCount(t, store, graph.Hashtagged, "alice", "#b"))
	assert.Equal(t, int64(1), edgeCount(t, store, graph.CoOccurs, "#a", "#b"))
	assert.Equal(t, int64(1), edgeCount(t, store, graph.CoOccurs, "#b", "#a"))

	alice, err := store.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(30), alice.LastSeenID)
}

func TestInteractionIngesterIdempotentRerun(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)

	post := twitter.Post{ID: 10}
	post.Entities.Mentions = []twitter.MentionEntity{{Handle: "bob"}}

	platform := &fakePlatform{
		accounts: map[string]twitter.AccountInfo{
			"bob": account("bob", 50, 500),
		},
		timelines: map[string][][]twitter.Post{
			"alice": {{post}},
		},
	}

	opts := InteractionOptions{Mentions: true}
	ingester := NewInteractionIngester(platform, store, Filters{}, opts, nil)
	_, err := ingester.Run(context.Background())
	require.NoError(t, err)

	// Same timeline again: the watermark stops everything at the door.
	platform.timelines["alice"] = [][]twitter.Post{{post}}
	ingester = NewInteractionIngester(platform, store, Filters{}, opts, nil)
	stats, err := ingester.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Posts)

	assert.Equal(t, int64(1), edgeCount(t, store, graph.Mentioned, "alice", "bob"))
}

func TestInteractionIngesterWatermarkStop(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)
	require.NoError(t, store.AdvanceCursor(context.Background(), "alice", 15))

	older := twitter.Post{ID: 10}
	older.Entities.Mentions = []twitter.MentionEntity{{Handle: "old"}}
	newer := twitter.Post{ID: 20}
	newer.Entities.Mentions = []twitter.MentionEntity{{Handle: "bob"}}

	platform := &fakePlatform{
		accounts: map[string]twitter.AccountInfo{
			"bob": account("bob", 50, 500),
			"old": account("old", 50, 500),
		},
		timelines: map[string][][]twitter.Post{
			"alice": {{newer, older}},
		},
	}

	ingester := NewInteractionIngester(platform, store, Filters{}, InteractionOptions{Mentions: true}, nil)
	stats, err := ingester.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Posts)

	assert.Equal(t, int64(1), edgeCount(t, store, graph.Mentioned, "alice", "bob"))
	assert.Equal(t, int64(0), edgeCount(t, store, graph.Mentioned, "alice", "old"))

	alice, err := store.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(20), alice.LastSeenID)
}

func TestInteractionIngesterKeepsWatermarkOnError(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)

	post := twitter.Post{ID: 10}
	post.Entities.Mentions = []twitter.MentionEntity{{Handle: "bob"}}

	platform := &fakePlatform{
		accounts: map[string]twitter.AccountInfo{
			"bob": account("bob", 50, 500),
		},
		timelines: map[string][][]twitter.Post{
			"alice": {{post}},
		},
		timelineErr: map[string]error{"alice": twitter.ErrTransient},
	}

	ingester := NewInteractionIngester(platform, store, Filters{}, InteractionOptions{Mentions: true}, nil)
	stats, err := ingester.Run(context.Background())
	require.NoError(t, err, "one failed account does not fail the pass")
	assert.Equal(t, 1, stats.Failed)

	// Edges already written stay, but the cursor did not move, so the
	// next run will revisit the same posts.
	assert.Equal(t, int64(1), edgeCount(t, store, graph.Mentioned, "alice", "bob"))
	alice, err := store.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), alice.LastSeenID)
}

func TestInteractionIngesterMaxPages(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)

	page1 := []twitter.Post{{ID: 20}}
	page2 := []twitter.Post{{ID: 10}}

	platform := &fakePlatform{
		timelines: map[string][][]twitter.Post{
			"alice": {page1, page2},
		},
	}

	ingester := NewInteractionIngester(platform, store, Filters{}, InteractionOptions{MaxPages: 1}, nil)
	stats, err := ingester.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Posts)

	alice, err := store.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(20), alice.LastSeenID)
}

func TestInteractionIngesterFiltersDiscoveredAccounts(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)

	post := twitter.Post{ID: 10}
	post.Entities.Mentions = []twitter.MentionEntity{{Handle: "tiny"}, {Handle: "ghost"}}

	platform := &fakePlatform{
		accounts: map[string]twitter.AccountInfo{
			"tiny": account("tiny", 3, 10),
		},
		timelines: map[string][][]twitter.Post{
			"alice": {{post}},
		},
	}

	filters := Filters{MinFollowers: 100, MinPosts: 1000}
	ingester := NewInteractionIngester(platform, store, filters, InteractionOptions{Mentions: true}, nil)
	_, err := ingester.Run(context.Background())
	require.NoError(t, err)

	// Neither the under-threshold account nor the unknown handle became a
	// node or an edge.
	assert.Equal(t, int64(0), edgeCount(t, store, graph.Mentioned, "alice", "tiny"))
	assert.Equal(t, int64(0), edgeCount(t, store, graph.Mentioned, "alice", "ghost"))
	count, err := store.AccountCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInteractionIngesterPopulationCap(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)
	seedNode(t, store, "bob", 100)

	post := twitter.Post{ID: 10}
	post.Entities.Mentions = []twitter.MentionEntity{{Handle: "carol"}, {Handle: "bob"}}

	platform := &fakePlatform{
		accounts: map[string]twitter.AccountInfo{
			"carol": account("carol", 500, 5000),
		},
		timelines: map[string][][]twitter.Post{
			"alice": {{post}},
			"bob":   {},
		},
	}

	ingester := NewInteractionIngester(platform, store, Filters{MaxAccounts: 2}, InteractionOptions{Mentions: true}, nil)
	_, err := ingester.Run(context.Background())
	require.NoError(t, err)

	// carol would be node number three; the cap blocks her, but edges to
	// nodes already in the graph still land.
	assert.Equal(t, int64(0), edgeCount(t, store, graph.Mentioned, "alice", "carol"))
	assert.Equal(t, int64(1), edgeCount(t, store, graph.Mentioned, "alice", "bob"))
}

func TestFollowIngester(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)
	seedNode(t, store, "alice", 100)
	seedNode(t, store, "oldtimer", 1)

	platform := &fakePlatform{
		followers: map[string][][]twitter.AccountInfo{
			"alice": {{
				account("bob", 500, 5000),
				account("tiny", 2, 3),
				account("oldtimer", 1, 1),
			}},
			"oldtimer": {},
		},
	}

	ingester := NewFollowIngester(platform, store, Filters{MinFollowers: 100, MinPosts: 1000}, nil)
	stats, err := ingester.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Edges)

	assert.Equal(t, int64(1), edgeCount(t, store, graph.Follows, "alice", "bob"))
	assert.Equal(t, int64(0), edgeCount(t, store, graph.Follows, "alice", "tiny"))
	assert.Equal(t, int64(1), edgeCount(t, store, graph.Follows, "alice", "oldtimer"),
		"existing nodes get the edge even below the quality bar")

	alice, err := store.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), alice.Followed)

	bob, err := store.GetAccount(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bob.Following)
}

func TestSeedAccounts(t *testing.T) {
	store := graph.NewMemoryStore(allowAll{}, nil)

	platform := &fakePlatform{
		accounts: map[string]twitter.AccountInfo{
			"alice": account("alice", 2, 3),
		},
	}

	// Seeds skip the quality filters entirely.
	added, err := SeedAccounts(context.Background(), platform, store, []string{"alice", "ghost"}, "journalist", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	alice, err := store.GetAccount(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, "journalist", alice.Class)
}
