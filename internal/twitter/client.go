package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/nschaetti/tanaturf/internal/logger"
)

const (
	defaultBaseURL = "https://api.twitter.com/1.1"
	pageSize       = 200
	followerPage   = 200
	maxRetries     = 3
	retryDelay     = 3 * time.Second
	maxLimitWait   = 16 * time.Minute
)

// Client talks to the platform's REST API with bearer-token auth. Rate
// limits are waited out (up to a budget) and transient failures retried a
// bounded number of times; callers only see the terminal error kinds.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

func NewClient(token, baseURL string, log *logger.Logger) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 30 * time.Second

	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		log:        log.With("client", "twitter"),
	}
}

// LookupAccount resolves a handle to its profile.
func (c *Client) LookupAccount(ctx context.Context, handle string) (*AccountInfo, error) {
	params := url.Values{"screen_name": {handle}}
	var info AccountInfo
	if err := c.get(ctx, "/users/show.json", params, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Timeline returns a pager over the account's posts, newest first.
func (c *Client) Timeline(handle string) *TimelinePager {
	return &TimelinePager{client: c, handle: handle}
}

// Reposts lists the accounts that reposted the given post.
func (c *Client) Reposts(ctx context.Context, postID int64) ([]AccountInfo, error) {
	var posts []Post
	path := fmt.Sprintf("/statuses/retweets/%d.json", postID)
	if err := c.get(ctx, path, url.Values{"count": {"100"}}, &posts); err != nil {
		return nil, err
	}

	accounts := make([]AccountInfo, 0, len(posts))
	for _, p := range posts {
		accounts = append(accounts, p.Author)
	}
	return accounts, nil
}

// Followers returns a pager over the account's followers.
func (c *Client) Followers(handle string) *FollowerPager {
	return &FollowerPager{client: c, handle: handle, cursor: -1}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, reset, err := c.doOnce(ctx, path, params, out)
		switch {
		case err == nil && status == http.StatusOK:
			return nil
		case status == http.StatusNotFound:
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		case status == http.StatusTooManyRequests:
			if waitErr := c.waitForReset(ctx, reset); waitErr != nil {
				return fmt.Errorf("%s: %w", path, ErrRateLimited)
			}
			// Waiting does not consume a retry.
			attempt--
			lastErr = ErrRateLimited
		default:
			if err == nil {
				err = fmt.Errorf("unexpected status %d", status)
			}
			c.log.Warn("request failed", "path", path, "attempt", attempt+1, "error", err)
			lastErr = err
		}
	}

	return fmt.Errorf("%s after %d attempts (%v): %w", path, maxRetries+1, lastErr, ErrTransient)
}

func (c *Client) doOnce(ctx context.Context, path string, params url.Values, out interface{}) (status int, reset time.Time, err error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, time.Time{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, parseReset(resp.Header.Get("x-rate-limit-reset")), nil
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, time.Time{}, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, time.Time{}, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, time.Time{}, nil
}

func (c *Client) waitForReset(ctx context.Context, reset time.Time) error {
	wait := retryDelay
	if !reset.IsZero() {
		wait = time.Until(reset) + time.Second
	}
	if wait <= 0 {
		wait = retryDelay
	}
	if wait > maxLimitWait {
		return fmt.Errorf("rate-limit reset too far away (%s)", wait)
	}

	c.log.Info("rate limited, waiting", "wait", wait.String())
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseReset(header string) time.Time {
	if header == "" {
		return time.Time{}
	}
	epoch, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}
