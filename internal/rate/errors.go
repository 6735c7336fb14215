package rate

import "errors"

var (
	// ErrLimited is returned when an identifier has exhausted its attempt
	// budget for an action.
	ErrLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures against the backing store.
	ErrRedisUnavailable = errors.New("rate limit redis unavailable")
)
