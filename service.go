package authkit

import (
	"context"
	"sync"
	"time"

	"github.com/shiftcrew/authkit/session"
)

// Service is the single entry point consumed by applications. It wraps the
// configured backend, retains only the current token material, and schedules
// proactive refresh ahead of access-token expiry.
//
// Service methods are safe for concurrent use after [Builder.Build].
type Service struct {
	provider     Provider
	cfg          Config
	audit        *auditDispatcher
	metrics      *Metrics
	sessions     session.Store
	ownsSessions bool
	clock        func() time.Time

	mu           sync.Mutex
	user         *User
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	timer        *time.Timer
	closed       bool
}

// Provider returns the wrapped backend. Callers that need operations
// outside the façade's lifecycle tracking can go through it directly.
func (s *Service) Provider() Provider {
	if s == nil {
		return nil
	}
	return s.provider
}

// Config returns a copy of the effective configuration.
func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return cloneConfig(s.cfg)
}

// SignIn authenticates the credentials, stores the resulting token material
// as the service's current session, and arms the proactive refresh timer.
func (s *Service) SignIn(ctx context.Context, creds Credentials) (*Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	result, err := s.provider.SignIn(ctx, creds)
	if err != nil {
		return nil, err
	}
	s.adopt(result)
	return result, nil
}

// SignOut revokes the session through the backend. When the revoked session
// covers the service's current token material, the material is cleared and
// the refresh timer stopped.
func (s *Service) SignOut(ctx context.Context, userID, sessionID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.provider.SignOut(ctx, userID, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.user != nil && s.user.ID == userID {
		s.clearLocked()
	}
	s.mu.Unlock()
	return nil
}

// ValidateToken resolves the access token to its user via the backend.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (*User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.provider.ValidateToken(ctx, accessToken)
}

// RefreshToken rotates the given refresh token. When it matches the
// service's current material, the new session replaces it and the refresh
// timer is re-armed.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	result, err := s.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		s.mu.Lock()
		if s.refreshToken == refreshToken {
			s.clearLocked()
		}
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Lock()
	current := s.refreshToken == refreshToken || s.refreshToken == ""
	s.mu.Unlock()
	if current {
		s.adopt(result)
	}
	return result, nil
}

// Refresh rotates the service's current session in place. It returns
// [ErrNoActiveSession] when no token material is held.
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	token := s.refreshToken
	s.mu.Unlock()
	if token == "" {
		return nil, ErrNoActiveSession
	}
	return s.RefreshToken(ctx, token)
}

// SendPasswordReset delegates to the backend.
func (s *Service) SendPasswordReset(ctx context.Context, email string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.provider.SendPasswordReset(ctx, email)
}

// ResetPassword completes a password reset. The fresh session it produces
// becomes the service's current material.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	result, err := s.provider.ResetPassword(ctx, token, newPassword)
	if err != nil {
		return nil, err
	}
	s.adopt(result)
	return result, nil
}

// ChangePassword re-authenticates and rotates the password. All prior
// sessions are revoked by the backend; the replacement session becomes the
// service's current material.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	result, err := s.provider.ChangePassword(ctx, userID, currentPassword, newPassword)
	if err != nil {
		return nil, err
	}
	s.adopt(result)
	return result, nil
}

// UpdateProfile delegates to the backend and refreshes the cached user when
// it is the current one.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	result, err := s.provider.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.user != nil && result.User != nil && s.user.ID == result.User.ID {
		s.user = result.User.Clone()
	}
	s.mu.Unlock()
	return result, nil
}

// UserExists delegates to the backend.
func (s *Service) UserExists(ctx context.Context, email string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.provider.UserExists(ctx, email)
}

// UserByID delegates to the backend.
func (s *Service) UserByID(ctx context.Context, userID string) (*User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.provider.UserByID(ctx, userID)
}

// UserSessions delegates to the backend.
func (s *Service) UserSessions(ctx context.Context, userID string) ([]session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.provider.UserSessions(ctx, userID)
}

// RevokeSession delegates to the backend and clears current material when
// the revoked session is the service's own.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return s.SignOut(ctx, userID, sessionID)
}

// RevokeAllSessions delegates to the backend and clears current material
// when the target user is the service's own.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) error {
	return s.SignOut(ctx, userID, "")
}

// HealthCheck delegates to the backend.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.provider.HealthCheck(ctx)
}

// CurrentUser returns a copy of the user behind the service's current token
// material, or nil when no session is held.
func (s *Service) CurrentUser() *User {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// AccessToken returns the current access token and its absolute expiry.
// The token is empty when no session is held.
func (s *Service) AccessToken() (string, time.Time) {
	if s == nil {
		return "", time.Time{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.expiresAt
}

// ScheduleRefresh arms the proactive refresh timer for the current session.
// It is a no-op when proactive refresh is disabled, the service is closed,
// or no token material is held. SignIn and refresh arm the timer on their
// own; this exists for callers that adopted material out of band.
func (s *Service) ScheduleRefresh() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked()
}

// Close stops the refresh timer, flushes the audit dispatcher, and closes
// the session store when the service owns it. Close is idempotent.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.clearLocked()
	s.mu.Unlock()

	if s.audit != nil {
		s.audit.Close()
	}
	if s.ownsSessions && s.sessions != nil {
		return s.sessions.Close()
	}
	return nil
}

// MetricsSnapshot returns a point-in-time copy of all counters and
// histograms. Exporters poll this.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher discarded due
// to a full buffer.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

func (s *Service) ready() error {
	if s == nil || s.provider == nil {
		return ErrProviderNotReady
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrServiceClosed
	}
	return nil
}

// adopt installs the result's token material as the current session and
// re-arms the refresh timer. Results without token material (profile
// updates) leave the current session alone.
func (s *Service) adopt(result *Result) {
	if result == nil || result.AccessToken == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.user = result.User.Clone()
	s.accessToken = result.AccessToken
	s.refreshToken = result.RefreshToken
	s.expiresAt = result.ExpiresAt
	s.scheduleLocked()
}

func (s *Service) clearLocked() {
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Service) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.closed || !s.cfg.Refresh.Proactive || s.refreshToken == "" {
		return
	}
	remaining := s.expiresAt.Sub(s.clock())
	if remaining <= 0 {
		return
	}
	delay := time.Duration(float64(remaining) * s.cfg.Refresh.Fraction)
	s.timer = time.AfterFunc(delay, s.refreshInBackground)
}

// refreshInBackground runs on the timer goroutine. A failed rotation clears
// the current material rather than retrying: the refresh token is single-use
// and a failure here means the session was revoked, expired, or raced.
func (s *Service) refreshInBackground() {
	s.mu.Lock()
	token := s.refreshToken
	closed := s.closed
	s.mu.Unlock()
	if closed || token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := s.provider.RefreshToken(ctx, token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.refreshToken != token {
		return
	}
	if err != nil {
		s.clearLocked()
		return
	}
	s.user = result.User.Clone()
	s.accessToken = result.AccessToken
	s.refreshToken = result.RefreshToken
	s.expiresAt = result.ExpiresAt
	s.scheduleLocked()
}

var _ Provider = (*Service)(nil)
