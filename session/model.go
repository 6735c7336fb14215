package session

import (
	"maps"
	"time"
)

// Session is the authoritative record binding a user to a token pair.
//
// AccessToken and RefreshToken are always distinct strings. ExpiresAt is the
// absolute access expiry; RefreshExpiresAt closes the refresh window and is
// strictly later than ExpiresAt for every minted session.
type Session struct {
	ID               string
	UserID           string
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastAccessAt     time.Time
	Metadata         map[string]string
}

// Expired reports whether the access window has closed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// RefreshExpired reports whether the refresh window has closed.
func (s *Session) RefreshExpired(now time.Time) bool {
	return !s.RefreshExpiresAt.IsZero() && now.After(s.RefreshExpiresAt)
}

// Clone returns a deep copy so stores never hand out aliased state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		maps.Copy(out.Metadata, s.Metadata)
	}
	return &out
}
