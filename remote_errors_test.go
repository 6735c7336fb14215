package authkit

import (
	"errors"
	"testing"
)

func TestMapRemoteErrorStructuredCodes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"invalid credentials", `{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`, ErrInvalidCredentials},
		{"invalid grant", `{"error_code":"invalid_grant"}`, ErrInvalidCredentials},
		{"user not found", `{"error_code":"user_not_found"}`, ErrUserNotFound},
		{"banned", `{"error_code":"user_banned"}`, ErrUserDisabled},
		{"unconfirmed", `{"error_code":"email_not_confirmed"}`, ErrEmailNotVerified},
		{"bad jwt", `{"error_code":"bad_jwt"}`, ErrTokenInvalid},
		{"session expired", `{"error_code":"session_expired"}`, ErrTokenExpired},
		{"refresh reuse", `{"error_code":"refresh_token_already_used"}`, ErrRefreshInvalid},
		{"otp expired", `{"error_code":"otp_expired"}`, ErrResetTokenInvalid},
		{"weak password", `{"error_code":"weak_password"}`, ErrPasswordTooWeak},
		{"rate limited", `{"error_code":"over_request_rate_limit"}`, ErrRateLimited},
		{"alt code field", `{"code":"invalid_credentials"}`, ErrInvalidCredentials},
		{"uppercase code", `{"error_code":"INVALID_CREDENTIALS"}`, ErrInvalidCredentials},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapRemoteError(400, []byte(tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("mapRemoteError(%s) = %v, want %v", tc.body, err, tc.want)
			}
		})
	}
}

func TestMapRemoteErrorSubstringFallback(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"login credentials phrase", `{"msg":"Invalid login credentials"}`, ErrInvalidCredentials},
		{"refresh phrase", `{"message":"Invalid Refresh Token: Already Used"}`, ErrRefreshInvalid},
		{"unconfirmed phrase", `{"msg":"Email not confirmed"}`, ErrEmailNotVerified},
		{"banned phrase", `{"error_description":"User is banned"}`, ErrUserDisabled},
		{"rate limit phrase", `{"msg":"Request rate limit reached"}`, ErrRateLimited},
		{"expired phrase", `{"msg":"Token has expired or is invalid"}`, ErrTokenExpired},
		{"not found phrase", `{"msg":"User not found"}`, ErrUserNotFound},
		{"unknown code falls back to message", `{"error_code":"brand_new_code","msg":"user not found"}`, ErrUserNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapRemoteError(400, []byte(tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("mapRemoteError(%s) = %v, want %v", tc.body, err, tc.want)
			}
		})
	}
}

func TestMapRemoteErrorUnmappedIsProviderError(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown message", `{"msg":"something nobody anticipated"}`},
		{"empty body", ``},
		{"not json", `<html>502 Bad Gateway</html>`},
		{"empty object", `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapRemoteError(502, []byte(tc.body))
			if !errors.Is(err, ErrProviderUnavailable) {
				t.Fatalf("expected ErrProviderUnavailable, got %v", err)
			}
			if code := CodeForError(err); code != CodeProviderError {
				t.Fatalf("code = %q, want %q", code, CodeProviderError)
			}
		})
	}
}
