package rate

import "errors"

var (
	// ErrRateLimited is returned once the failure budget for a client is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
