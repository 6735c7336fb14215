package authkit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// remoteError is the error body shape returned by the remote identity
// service. Field names vary across deployments, so every known spelling is
// decoded and the first non-empty one wins.
type remoteError struct {
	ErrorCode        string `json:"error_code"`
	Code             string `json:"code"`
	Error_           string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
	MessageAlt       string `json:"message"`
}

func (e remoteError) code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	return e.Code
}

func (e remoteError) message() string {
	for _, m := range []string{e.Message, e.MessageAlt, e.ErrorDescription, e.Error_} {
		if m != "" {
			return m
		}
	}
	return ""
}

// remoteCodeMap maps structured error codes to sentinel errors. The remote
// message formats are an external contract and may drift; the structured
// code is tried first and substring matching is the fallback.
var remoteCodeMap = map[string]error{
	"invalid_credentials":        ErrInvalidCredentials,
	"invalid_grant":              ErrInvalidCredentials,
	"user_not_found":             ErrUserNotFound,
	"user_banned":                ErrUserDisabled,
	"user_disabled":              ErrUserDisabled,
	"email_not_confirmed":        ErrEmailNotVerified,
	"bad_jwt":                    ErrTokenInvalid,
	"session_not_found":          ErrTokenInvalid,
	"session_expired":            ErrTokenExpired,
	"refresh_token_not_found":    ErrRefreshInvalid,
	"refresh_token_already_used": ErrRefreshInvalid,
	"otp_expired":                ErrResetTokenInvalid,
	"recovery_token_not_found":   ErrResetTokenInvalid,
	"weak_password":              ErrPasswordTooWeak,
	"same_password":              ErrPasswordMismatch,
	"over_request_rate_limit":    ErrRateLimited,
	"validation_failed":          ErrValidation,
}

// remoteSubstringMap is the best-effort fallback when no structured code is
// present. Order matters: more specific phrases come first.
var remoteSubstringMap = []struct {
	fragment string
	err      error
}{
	{"invalid login credentials", ErrInvalidCredentials},
	{"invalid credentials", ErrInvalidCredentials},
	{"refresh token", ErrRefreshInvalid},
	{"not confirmed", ErrEmailNotVerified},
	{"not verified", ErrEmailNotVerified},
	{"banned", ErrUserDisabled},
	{"disabled", ErrUserDisabled},
	{"rate limit", ErrRateLimited},
	{"too many requests", ErrRateLimited},
	{"expired", ErrTokenExpired},
	{"user not found", ErrUserNotFound},
	{"not found", ErrUserNotFound},
	{"invalid token", ErrTokenInvalid},
	{"weak password", ErrPasswordTooWeak},
}

// mapRemoteError translates a non-2xx response body into the error
// taxonomy. Anything unrecognized, including a body that is not JSON at
// all, is a provider error carrying the HTTP status.
func mapRemoteError(status int, body []byte) error {
	var re remoteError
	if err := json.Unmarshal(body, &re); err == nil {
		if code := re.code(); code != "" {
			if mapped, ok := remoteCodeMap[strings.ToLower(code)]; ok {
				return fmt.Errorf("%w: remote %s", mapped, code)
			}
		}
		if msg := re.message(); msg != "" {
			lower := strings.ToLower(msg)
			for _, entry := range remoteSubstringMap {
				if strings.Contains(lower, entry.fragment) {
					return fmt.Errorf("%w: %s", entry.err, msg)
				}
			}
			return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, status, msg)
		}
	}
	return fmt.Errorf("%w: status %d", ErrProviderUnavailable, status)
}
