package twitter

// AccountInfo is the platform's view of an account, as returned by
// lookups, repost listings and follower pages.
type AccountInfo struct {
	Handle    string `json:"screen_name"`
	Followers int    `json:"followers_count"`
	Posts     int    `json:"statuses_count"`
	Location  string `json:"location"`
	URL       string `json:"url"`
	Entities  struct {
		URL struct {
			URLs []URLEntity `json:"urls"`
		} `json:"url"`
	} `json:"entities"`
}

// ProfileURL prefers the expanded profile link over the shortened one.
func (a *AccountInfo) ProfileURL() string {
	if len(a.Entities.URL.URLs) > 0 && a.Entities.URL.URLs[0].ExpandedURL != "" {
		return a.Entities.URL.URLs[0].ExpandedURL
	}
	return a.URL
}

// Post is one timeline item. RepostOf is non-nil when the post is itself
// a repost of someone else's original.
type Post struct {
	ID       int64       `json:"id"`
	Text     string      `json:"text"`
	Author   AccountInfo `json:"user"`
	RepostOf *Post       `json:"retweeted_status"`
	Entities PostEntities `json:"entities"`
}

type PostEntities struct {
	URLs     []URLEntity     `json:"urls"`
	Mentions []MentionEntity `json:"user_mentions"`
	Hashtags []HashtagEntity `json:"hashtags"`
}

type URLEntity struct {
	ExpandedURL string `json:"expanded_url"`
}

type MentionEntity struct {
	Handle string `json:"screen_name"`
}

// HashtagEntity carries the tag text without the leading '#'.
type HashtagEntity struct {
	Text string `json:"text"`
}
