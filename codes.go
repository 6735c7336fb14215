package authkit

import (
	"errors"

	"github.com/shiftcrew/authkit/internal/rate"
	"github.com/shiftcrew/authkit/jwt"
	"github.com/shiftcrew/authkit/password"
	"github.com/shiftcrew/authkit/session"
)

// Code is the stable machine-readable classification attached to every
// provider failure. Codes are part of the public contract: backends may fail
// for backend-specific reasons, but callers always receive one of these
// values from [CodeForError].
type Code string

const (
	// CodeValidationError classifies malformed input.
	CodeValidationError Code = "VALIDATION_ERROR"
	// CodeInvalidCredentials classifies unknown-user and wrong-password
	// failures uniformly.
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	// CodeUserNotFound classifies lookups of nonexistent users.
	CodeUserNotFound Code = "USER_NOT_FOUND"
	// CodeUserDisabled classifies operations on disabled accounts.
	CodeUserDisabled Code = "USER_DISABLED"
	// CodeEmailNotVerified classifies sign-in attempts pending verification.
	CodeEmailNotVerified Code = "EMAIL_NOT_VERIFIED"
	// CodeTokenExpired classifies expired access tokens.
	CodeTokenExpired Code = "TOKEN_EXPIRED"
	// CodeInvalidToken classifies malformed, forged, or consumed tokens.
	CodeInvalidToken Code = "INVALID_TOKEN"
	// CodePasswordTooWeak classifies policy violations.
	CodePasswordTooWeak Code = "PASSWORD_TOO_WEAK"
	// CodePasswordMismatch classifies failed current-password checks.
	CodePasswordMismatch Code = "PASSWORD_MISMATCH"
	// CodeRateLimitExceeded classifies throttled operations.
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	// CodeProviderError classifies everything else: transport faults,
	// storage faults, and unmapped backend errors.
	CodeProviderError Code = "PROVIDER_ERROR"
)

// CodeForError maps any error returned by a [Provider] to its taxonomy code.
// Wrapped sentinel chains are honored via [errors.Is]; errors from the jwt,
// password, and session packages map without the caller importing them.
// A nil error has no code and returns "".
func CodeForError(err error) Code {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidationError
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrUserNotFound):
		return CodeUserNotFound
	case errors.Is(err, ErrUserDisabled):
		return CodeUserDisabled
	case errors.Is(err, ErrEmailNotVerified):
		return CodeEmailNotVerified
	case errors.Is(err, ErrTokenExpired), errors.Is(err, jwt.ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrResetTokenInvalid), errors.Is(err, jwt.ErrTokenInvalid):
		return CodeInvalidToken
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, session.ErrNotFound):
		return CodeInvalidToken
	case errors.Is(err, ErrPasswordTooWeak):
		return CodePasswordTooWeak
	case errors.Is(err, ErrPasswordMismatch):
		return CodePasswordMismatch
	case errors.Is(err, ErrRateLimited), errors.Is(err, rate.ErrLimited):
		return CodeRateLimitExceeded
	default:
		var policyErr *password.PolicyError
		if errors.As(err, &policyErr) {
			return CodePasswordTooWeak
		}
		return CodeProviderError
	}
}
