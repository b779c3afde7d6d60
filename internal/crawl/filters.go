package crawl

// Filters gate which discovered accounts are worth adding to the graph.
// Zero values disable the corresponding check.
type Filters struct {
	MinFollowers int
	MinPosts     int
	MaxAccounts  int
}

func (f *Filters) PassesAccountFilter(followers, posts int) bool {
	if f.MinFollowers > 0 && followers < f.MinFollowers {
		return false
	}
	if f.MinPosts > 0 && posts < f.MinPosts {
		return false
	}
	return true
}

func (f *Filters) LimitReached(currentCount int) bool {
	return f.MaxAccounts > 0 && currentCount >= f.MaxAccounts
}
