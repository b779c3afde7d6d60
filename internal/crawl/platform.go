package crawl

import (
	"context"

	"github.com/nschaetti/tanaturf/internal/twitter"
)

// PostSource pages through an account's posts, newest first. An empty
// page means the source is exhausted.
type PostSource interface {
	Next(ctx context.Context) ([]twitter.Post, error)
}

// AccountSource pages through a list of accounts.
type AccountSource interface {
	Next(ctx context.Context) ([]twitter.AccountInfo, error)
}

// Platform is the slice of the API the ingesters need.
type Platform interface {
	LookupAccount(ctx context.Context, handle string) (*twitter.AccountInfo, error)
	Timeline(handle string) PostSource
	Followers(handle string) AccountSource
	Reposts(ctx context.Context, postID int64) ([]twitter.AccountInfo, error)
}

type platformClient struct {
	*twitter.Client
}

func (p platformClient) Timeline(handle string) PostSource {
	return p.Client.Timeline(handle)
}

func (p platformClient) Followers(handle string) AccountSource {
	return p.Client.Followers(handle)
}

// NewPlatform adapts the REST client to the Platform interface.
func NewPlatform(c *twitter.Client) Platform {
	return platformClient{c}
}
