package authkit

import (
	"context"
	"io"
	"strings"
	"time"

	internalaudit "github.com/shiftcrew/authkit/internal/audit"
)

// Role is the fixed role vocabulary carried on user accounts. Providers do
// not evaluate permissions; they only store and report the role.
type Role string

const (
	// RoleAdmin has full administrative standing in its organization.
	RoleAdmin Role = "admin"
	// RoleManager manages a team within its organization.
	RoleManager Role = "manager"
	// RoleWorker is a regular member account.
	RoleWorker Role = "worker"
	// RoleGuest is an unprivileged visitor account.
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the four defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleWorker, RoleGuest:
		return true
	}
	return false
}

// User is the canonical account representation shared by all backends.
// Backends translate their native records into this shape; callers never see
// backend-specific user types.
type User struct {
	ID            string
	Email         string
	DisplayName   string
	Role          Role
	OrgID         string
	Metadata      map[string]string
	Disabled      bool
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLoginAt   time.Time
}

// Clone returns a deep copy so providers can hand out users without
// aliasing their internal state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Metadata != nil {
		out.Metadata = make(map[string]string, len(u.Metadata))
		for k, v := range u.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Credentials carries a sign-in attempt. The password is held only for the
// duration of the call and never stored.
type Credentials struct {
	Email    string
	Password string
}

// ProfileUpdate is the input for [Provider.UpdateProfile]. Nil fields are
// left untouched; metadata keys outside the allow-list are dropped.
type ProfileUpdate struct {
	DisplayName *string
	Metadata    map[string]string
}

// Result is returned by every state-changing provider operation that ends
// with a live session: the authenticated user plus fresh token material.
type Result struct {
	User         *User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RateLimitStore throttles sensitive operations per identifier+action pair.
// The builder wires the Redis-backed implementation when a client is
// supplied and a permit-all store otherwise; callers may plug their own.
type RateLimitStore interface {
	// Check returns [ErrRateLimited] (or a wrapping error) when the
	// identifier has exhausted its attempts for action.
	Check(ctx context.Context, identifier, action string) error
	// RecordHit registers one failed attempt.
	RecordHit(ctx context.Context, identifier, action string) error
	// Reset clears the counter after a successful attempt.
	Reset(ctx context.Context, identifier, action string) error
}

// AuditEvent is the structured audit record emitted by providers.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink], convenient in tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// normalizeEmail lowercases and trims an email identifier.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
