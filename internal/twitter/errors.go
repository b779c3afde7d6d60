package twitter

import "errors"

var (
	// ErrNotFound means the requested account or post does not exist.
	ErrNotFound = errors.New("twitter: not found")

	// ErrRateLimited means the rate-limit window was exhausted and the
	// configured wait budget ran out before it reset.
	ErrRateLimited = errors.New("twitter: rate limited")

	// ErrTransient means a network or server failure persisted past the
	// bounded retry budget.
	ErrTransient = errors.New("twitter: transient network error")
)
