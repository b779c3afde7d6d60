package twitter

import (
	"context"
	"net/url"
	"strconv"
)

// TimelinePager walks an account's timeline newest-first using max_id
// pagination. Next returns an empty page once the timeline is exhausted.
type TimelinePager struct {
	client *Client
	handle string
	maxID  int64
	done   bool
}

func (p *TimelinePager) Next(ctx context.Context) ([]Post, error) {
	if p.done {
		return nil, nil
	}

	params := url.Values{
		"screen_name": {p.handle},
		"count":       {strconv.Itoa(pageSize)},
	}
	if p.maxID > 0 {
		params.Set("max_id", strconv.FormatInt(p.maxID-1, 10))
	}

	var page []Post
	if err := p.client.get(ctx, "/statuses/user_timeline.json", params, &page); err != nil {
		return nil, err
	}
	if len(page) == 0 {
		p.done = true
		return nil, nil
	}

	p.maxID = page[len(page)-1].ID
	return page, nil
}

// FollowerPager walks an account's follower list using cursor pagination.
type FollowerPager struct {
	client *Client
	handle string
	cursor int64
	done   bool
}

type followersPage struct {
	Users      []AccountInfo `json:"users"`
	NextCursor int64         `json:"next_cursor"`
}

func (p *FollowerPager) Next(ctx context.Context) ([]AccountInfo, error) {
	if p.done {
		return nil, nil
	}

	params := url.Values{
		"screen_name": {p.handle},
		"count":       {strconv.Itoa(followerPage)},
		"cursor":      {strconv.FormatInt(p.cursor, 10)},
	}

	var page followersPage
	if err := p.client.get(ctx, "/followers/list.json", params, &page); err != nil {
		return nil, err
	}

	p.cursor = page.NextCursor
	if p.cursor == 0 {
		p.done = true
	}
	if len(page.Users) == 0 {
		p.done = true
	}
	return page.Users, nil
}
