package graph

// EdgeKind names a directed relationship type in the interaction graph.
type EdgeKind string

const (
	// Amplified: account republished another account's content.
	Amplified EdgeKind = "AMPLIFIED"
	// Cited: account posted a link resolving to a website.
	Cited EdgeKind = "CITED"
	// Mentioned: account referenced another account by handle.
	Mentioned EdgeKind = "MENTIONED"
	// Hashtagged: account posted with a hashtag.
	Hashtagged EdgeKind = "HASHTAGGED"
	// CoOccurs: two hashtags appeared on the same post.
	CoOccurs EdgeKind = "CO_OCCURS"
	// Follows: edge from an account to one of its followers.
	Follows EdgeKind = "FOLLOWS"
)

// AllEdgeKinds in the order weighting passes process them.
var AllEdgeKinds = []EdgeKind{Amplified, Cited, Mentioned, Hashtagged, CoOccurs, Follows}

type NodeLabel string

const (
	LabelAccount NodeLabel = "Account"
	LabelWebsite NodeLabel = "Website"
	LabelHashtag NodeLabel = "Hashtag"
)

type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

// Endpoints returns the node labels an edge kind connects.
func (k EdgeKind) Endpoints() (from, to NodeLabel) {
	switch k {
	case Cited:
		return LabelAccount, LabelWebsite
	case Hashtagged:
		return LabelAccount, LabelHashtag
	case CoOccurs:
		return LabelHashtag, LabelHashtag
	default:
		return LabelAccount, LabelAccount
	}
}

// Account is a platform identity node. Counters accumulate per-kind
// observation totals; LastSeenID is the crawl watermark.
type Account struct {
	Handle     string
	Followers  int
	Posts      int
	ProfileURL string
	Location   string
	Class      string

	AmplifiedOut  int64
	AmplifiedIn   int64
	CitedOut      int64
	CitedIn       int64
	MentionedOut  int64
	MentionedIn   int64
	HashtaggedOut int64
	Followed      int64
	Following     int64

	LastSeenID int64
}

// Website is a cited web domain node, unique by registrable domain.
type Website struct {
	Domain  string
	Suffix  string
	CitedIn int64
}

// Hashtag is a tag node, unique by tag text including the leading '#'.
type Hashtag struct {
	Tag          string
	HashtaggedIn int64
	CoOccurOut   int64
	CoOccurIn    int64
}

// Edge is a directed, counted relationship between two node keys.
type Edge struct {
	Kind    EdgeKind
	From    string
	To      string
	Count   int64
	Weight  float64
	Created bool
}

// AccountParams are the profile fields captured when an account node is
// first created.
type AccountParams struct {
	Handle     string
	Followers  int
	Posts      int
	ProfileURL string
	Location   string
	Class      string
}

// counterProps maps an edge kind to the directional counter property it
// maintains on the source and target nodes.
type counterProps struct {
	out string
	in  string
}

var edgeCounters = map[EdgeKind]counterProps{
	Amplified:  {out: "amplified_out", in: "amplified_in"},
	Cited:      {out: "cited_out", in: "cited_in"},
	Mentioned:  {out: "mentioned_out", in: "mentioned_in"},
	Hashtagged: {out: "hashtagged_out", in: "hashtagged_in"},
	CoOccurs:   {out: "cooccur_out", in: "cooccur_in"},
	Follows:    {out: "followed", in: "following"},
}

// dividerProp is the source-node property a kind's weight divides by.
// Follows is the one asymmetry: attention share is diluted by the
// source's own follower count, not by how many follows it issues.
func dividerProp(kind EdgeKind) string {
	if kind == Follows {
		return "followers_count"
	}
	return edgeCounters[kind].out
}

// keyProp is the unique identity property for a node label.
func keyProp(label NodeLabel) string {
	switch label {
	case LabelWebsite:
		return "domain"
	case LabelHashtag:
		return "tag"
	default:
		return "handle"
	}
}
