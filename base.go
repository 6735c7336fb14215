package authkit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shiftcrew/authkit/internal"
	"github.com/shiftcrew/authkit/internal/sanitize"
	"github.com/shiftcrew/authkit/jwt"
	"github.com/shiftcrew/authkit/password"
	"github.com/shiftcrew/authkit/session"
)

// Rate-limit action names shared by both backends.
const (
	rateActionSignIn        = "sign_in"
	rateActionPasswordReset = "password_reset"
)

// core is the shared machinery embedded in every built-in backend: shape
// validation, policy checks, session minting, rate limiting, audit, and
// metrics. It guarantees that the memory and remote backends produce
// structurally identical results and classify failures the same way.
type core struct {
	cfg      Config
	hasher   *password.Hasher
	policy   password.Policy
	tokens   *jwt.Manager
	sessions session.Store
	limiter  RateLimitStore
	audit    *auditDispatcher
	metrics  *Metrics
	now      func() time.Time
}

func (c *core) metricInc(id MetricID) {
	if c == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *core) observeValidate(start time.Time) {
	if c == nil || !c.metrics.LatencyEnabled() {
		return
	}
	c.metrics.Observe(MetricValidateLatency, c.now().Sub(start))
}

// validateCredentialShape rejects malformed sign-in input before any
// backend work happens.
func (c *core) validateCredentialShape(creds Credentials) error {
	email := normalizeEmail(creds.Email)
	if email == "" {
		return fmt.Errorf("%w: email required", ErrValidation)
	}
	if !validEmail(email) {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if creds.Password == "" {
		return fmt.Errorf("%w: password required", ErrValidation)
	}
	return nil
}

// validEmail is a shape check, not an RFC parser: one @, a non-empty local
// part, and a dotted domain.
func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.IndexByte(email[at+1:], '@') != -1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.IndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}

// checkPolicy wraps policy violations so they classify as
// [CodePasswordTooWeak] while keeping the full violation list reachable via
// [errors.As].
func (c *core) checkPolicy(candidate string) error {
	if err := c.policy.Validate(candidate); err != nil {
		return fmt.Errorf("%w: %w", ErrPasswordTooWeak, err)
	}
	return nil
}

func (c *core) rateCheck(ctx context.Context, identifier, action string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Check(ctx, identifier, action); err != nil {
		c.metricInc(MetricRateLimitHit)
		return fmt.Errorf("%w: %s", ErrRateLimited, action)
	}
	return nil
}

// rateHit and rateReset are best-effort: a broken limiter backend must not
// turn an otherwise classified failure into a provider error.
func (c *core) rateHit(ctx context.Context, identifier, action string) {
	if c.limiter == nil {
		return
	}
	_ = c.limiter.RecordHit(ctx, identifier, action)
}

func (c *core) rateReset(ctx context.Context, identifier, action string) {
	if c.limiter == nil {
		return
	}
	_ = c.limiter.Reset(ctx, identifier, action)
}

// mintSession creates and persists a new session for user: fresh id, HS256
// access token, opaque single-use refresh token. When the per-user cap is
// configured, the oldest surviving sessions are evicted first.
func (c *core) mintSession(ctx context.Context, user *User) (*session.Session, error) {
	id, err := internal.NewID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate session id: %w", ErrProviderUnavailable, err)
	}
	sessionID := id.String()

	secret, err := internal.NewSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh secret: %w", ErrProviderUnavailable, err)
	}
	refreshToken, err := internal.EncodeToken(sessionID, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: encode refresh token: %w", ErrProviderUnavailable, err)
	}

	now := c.now().UTC()
	accessToken, err := c.tokens.Issue(sessionID, user.ID, string(user.Role), user.OrgID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %w", ErrProviderUnavailable, err)
	}

	sess := &session.Session{
		ID:               sessionID,
		UserID:           user.ID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresAt:        now.Add(c.cfg.TokenTTL),
		RefreshExpiresAt: now.Add(c.cfg.RefreshTokenTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
		LastAccessAt:     now,
	}

	if err := c.enforceSessionCap(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: save session: %w", ErrProviderUnavailable, err)
	}

	c.metricInc(MetricSessionCreated)
	return sess, nil
}

// enforceSessionCap evicts oldest sessions until a new one fits under
// MaxSessionsPerUser.
func (c *core) enforceSessionCap(ctx context.Context, userID string) error {
	limit := c.cfg.Session.MaxSessionsPerUser
	if limit <= 0 {
		return nil
	}

	live, err := c.sessions.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: list sessions: %w", ErrProviderUnavailable, err)
	}
	if len(live) < limit {
		return nil
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.Before(live[j].CreatedAt)
	})
	evict := len(live) - limit + 1
	for i := 0; i < evict; i++ {
		if err := c.sessions.Delete(ctx, live[i].ID); err != nil {
			return fmt.Errorf("%w: evict session: %w", ErrProviderUnavailable, err)
		}
		c.metricInc(MetricSessionRevoked)
		c.emitAudit(ctx, auditActionSessionRevoked, userID, live[i].ID, true, nil, func() map[string]string {
			return map[string]string{"reason": "session_cap"}
		})
	}
	return nil
}

func (c *core) result(user *User, sess *session.Session) *Result {
	return &Result{
		User:         user.Clone(),
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	}
}

// applyProfileUpdate sanitizes and merges an update into a cloned user.
func applyProfileUpdate(user *User, update ProfileUpdate, at time.Time) *User {
	out := user.Clone()
	if update.DisplayName != nil {
		out.DisplayName = sanitize.DisplayName(*update.DisplayName)
	}
	if update.Metadata != nil {
		clean := sanitize.Metadata(update.Metadata)
		if out.Metadata == nil {
			out.Metadata = make(map[string]string, len(clean))
		}
		for k, v := range clean {
			out.Metadata[k] = v
		}
	}
	out.UpdatedAt = at
	return out
}

// parseAccessToken verifies signature, expiry, and issuer, returning the
// session id claim.
func (c *core) parseAccessToken(token string) (*jwt.AccessClaims, error) {
	claims, err := c.tokens.Parse(token)
	if err != nil {
		if CodeForError(err) == CodeTokenExpired {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return claims, nil
}

// permitAllStore is the default [RateLimitStore]: it never throttles.
type permitAllStore struct{}

func (permitAllStore) Check(context.Context, string, string) error     { return nil }
func (permitAllStore) RecordHit(context.Context, string, string) error { return nil }
func (permitAllStore) Reset(context.Context, string, string) error     { return nil }
