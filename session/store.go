package session

import (
	"context"
	"time"
)

// Store persists sessions and resolves them by id or token.
//
// Stores do not interpret expiry beyond garbage collection: lookups return
// whatever record exists and providers decide what an expired record means.
// The one exception is [Store.ConsumeRefreshToken], which must be atomic —
// see the package documentation.
type Store interface {
	// Save inserts or replaces a session keyed by its id and indexes both
	// tokens.
	Save(ctx context.Context, sess *Session) error

	// GetByID returns the session with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Session, error)

	// GetByAccessToken resolves an access token to its session, or
	// ErrNotFound.
	GetByAccessToken(ctx context.Context, token string) (*Session, error)

	// ConsumeRefreshToken atomically resolves a refresh token to its session
	// and deletes that session. A second call with the same token returns
	// ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, token string) (*Session, error)

	// Touch updates the session's last-access timestamp.
	Touch(ctx context.Context, id string, at time.Time) error

	// ListByUser returns every stored session owned by the user.
	ListByUser(ctx context.Context, userID string) ([]Session, error)

	// Delete removes one session. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, id string) error

	// DeleteByUser removes every session owned by the user and reports how
	// many were removed.
	DeleteByUser(ctx context.Context, userID string) (int, error)

	// Close releases store resources.
	Close() error
}
