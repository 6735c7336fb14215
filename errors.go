package authkit

import "errors"

var (
	// ErrValidation marks malformed input rejected before any backend call.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials covers both unknown users and password mismatches
	// so that callers cannot probe for account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by lookups that are allowed to reveal
	// existence, such as UserByID.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserDisabled rejects operations on administratively disabled accounts.
	ErrUserDisabled = errors.New("user disabled")
	// ErrEmailNotVerified rejects sign-in when verification is required.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrTokenExpired marks an access token whose session has lapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid marks a token that is malformed, forged, or unknown.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRefreshInvalid marks a refresh token that is unknown or already
	// consumed by a previous rotation.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrResetTokenInvalid marks a password reset token that is unknown,
	// expired, or already used.
	ErrResetTokenInvalid = errors.New("invalid reset token")
	// ErrSessionNotFound is returned by session revocation and lookup when
	// the target session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPasswordTooWeak wraps the policy violation list from the password
	// package.
	ErrPasswordTooWeak = errors.New("password too weak")
	// ErrPasswordMismatch rejects a password change whose current password
	// does not verify.
	ErrPasswordMismatch = errors.New("password mismatch")
	// ErrRateLimited rejects an operation throttled by the rate-limit store.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable marks backend transport or storage failures.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNotSupported is returned by operations a backend cannot express,
	// such as session enumeration on the remote provider.
	ErrNotSupported = errors.New("operation not supported by provider")
	// ErrProviderNotReady guards calls on a nil or half-built provider.
	ErrProviderNotReady = errors.New("provider not initialized")
	// ErrServiceClosed rejects calls on a closed [Service].
	ErrServiceClosed = errors.New("service closed")
	// ErrNoActiveSession is returned by [Service.Refresh] when the service
	// holds no token material.
	ErrNoActiveSession = errors.New("no active session")
)
