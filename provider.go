package authkit

import (
	"context"

	"github.com/shiftcrew/authkit/session"
)

// Provider is the uniform contract every authentication backend implements.
// All methods take a context as their first parameter and honor its
// cancellation; all failures map to a taxonomy [Code] via [CodeForError].
//
// Implementations must be safe for concurrent use after construction.
type Provider interface {
	// SignIn validates the credential shape, checks the rate limiter,
	// verifies credentials, applies account status gates, and mints a new
	// session. Unknown users and wrong passwords fail identically with
	// [ErrInvalidCredentials].
	SignIn(ctx context.Context, creds Credentials) (*Result, error)

	// SignOut revokes one session when sessionID is set, or every session
	// of the user when sessionID is empty. Revoking an absent session is
	// not an error.
	SignOut(ctx context.Context, userID, sessionID string) error

	// ValidateToken resolves an access token to its user. An expired
	// session is deleted before the failure is reported; a live one has
	// its last-access time bumped.
	ValidateToken(ctx context.Context, accessToken string) (*User, error)

	// RefreshToken rotates a session: the presented refresh token is
	// consumed, the old session retired, and a new session minted. A
	// consumed or unknown token fails with [ErrRefreshInvalid].
	RefreshToken(ctx context.Context, refreshToken string) (*Result, error)

	// SendPasswordReset issues a reset challenge. It reports true for any
	// well-formed email regardless of account existence so the operation
	// cannot be used for enumeration.
	SendPasswordReset(ctx context.Context, email string) (bool, error)

	// ResetPassword consumes a reset token, applies the password policy,
	// stores the new hash, revokes every session of the user, and signs
	// the user in.
	ResetPassword(ctx context.Context, token, newPassword string) (*Result, error)

	// ChangePassword verifies the current password, applies the policy to
	// the new one, stores it, revokes every other session, and returns
	// fresh token material.
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*Result, error)

	// UpdateProfile applies a profile update. Metadata keys outside the
	// allow-list are silently dropped.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Result, error)

	// UserExists reports whether an account with the given email exists.
	UserExists(ctx context.Context, email string) (bool, error)

	// UserByID returns the account with the given id, or [ErrUserNotFound].
	UserByID(ctx context.Context, id string) (*User, error)

	// UserSessions lists the user's live sessions. Expired sessions are
	// removed, not listed.
	UserSessions(ctx context.Context, userID string) ([]session.Session, error)

	// RevokeSession revokes a single session owned by the user.
	RevokeSession(ctx context.Context, userID, sessionID string) error

	// RevokeAllSessions revokes every session of the user.
	RevokeAllSessions(ctx context.Context, userID string) error

	// HealthCheck reports whether the backend can serve requests.
	HealthCheck(ctx context.Context) error
}
