package session

import "errors"

var (
	// ErrNotFound is returned when no session matches the lookup key.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidSession is returned for records missing id or token material.
	ErrInvalidSession = errors.New("invalid session record")
	// ErrCorruptRecord is returned when a stored blob cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt session record")
	// ErrStoreUnavailable wraps transport failures against a backing store.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
