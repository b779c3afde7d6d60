package config

import "strings"

// Denylist holds handles, domains and tags that must never become graph
// nodes. Matching is case-insensitive.
type Denylist struct {
	entries map[string]struct{}
}

// defaultDenied covers platform-internal handles and high-traffic hub
// domains that carry no structural signal.
var defaultDenied = []string{
	"twitter", "youtube", "facebook", "bit.ly", "linkedin", "youtu.be",
	"goog.le", "google.com", "google.fr", "Facebook", "YouTube",
	"youtube.com", "fb.me", "amazon.com", "dailymotion.com",
	"soundcloud.com", "facebook.com", "e-monsite.com", "apple.com",
	"pscp.tv", "twitter.com", "instagram.com", "amzn.to", "Twitter",
	"TwitterSupport", "wikipedia.org", "archives.org", "Starbucks",
	"about.me", "wordpress.com",
}

func DefaultDenylist() *Denylist {
	d := &Denylist{entries: make(map[string]struct{})}
	d.Add(defaultDenied...)
	return d
}

func (d *Denylist) Add(names ...string) {
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			d.entries[n] = struct{}{}
		}
	}
}

func (d *Denylist) Contains(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.entries[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (d *Denylist) Len() int {
	return len(d.entries)
}
