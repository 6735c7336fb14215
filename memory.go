package authkit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiftcrew/authkit/internal"
	"github.com/shiftcrew/authkit/session"
)

const resetTokenTTL = time.Hour

type memoryUser struct {
	user         User
	passwordHash string
}

type resetChallenge struct {
	email   string
	expires time.Time
}

// MemoryProvider is the map-backed backend: a user table, a session store,
// and a reset-token table, all owned exclusively by this instance. It is
// the test and demo backend; its semantics define the reference behavior
// the remote backend approximates.
type MemoryProvider struct {
	core

	mu      sync.RWMutex
	users   map[string]*memoryUser // user id -> record
	byEmail map[string]string      // normalized email -> user id

	resets      map[string]resetChallenge // sha256 hex of token -> challenge
	lastResetTo map[string]string         // normalized email -> plaintext token
}

// seedUsers are the demo-org fixtures present in every fresh memory backend.
var seedUsers = []struct {
	email    string
	name     string
	role     Role
	password string
}{
	{"admin@demo-org.test", "Demo Admin", RoleAdmin, "AdminDemo1!"},
	{"manager@demo-org.test", "Demo Manager", RoleManager, "ManagerDemo1!"},
	{"worker@demo-org.test", "Demo Worker", RoleWorker, "WorkerDemo1!"},
}

const seedOrgID = "demo-org"

func newMemoryProvider(c core) (*MemoryProvider, error) {
	p := &MemoryProvider{
		core:        c,
		users:       make(map[string]*memoryUser),
		byEmail:     make(map[string]string),
		resets:      make(map[string]resetChallenge),
		lastResetTo: make(map[string]string),
	}

	now := c.now().UTC()
	for _, seed := range seedUsers {
		hash, err := c.hasher.Hash(seed.password)
		if err != nil {
			return nil, fmt.Errorf("hash seed password: %w", err)
		}
		id := uuid.NewString()
		p.users[id] = &memoryUser{
			user: User{
				ID:            id,
				Email:         seed.email,
				DisplayName:   seed.name,
				Role:          seed.role,
				OrgID:         seedOrgID,
				EmailVerified: true,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
			passwordHash: hash,
		}
		p.byEmail[seed.email] = id
	}

	return p, nil
}

// SignIn implements [Provider].
func (p *MemoryProvider) SignIn(ctx context.Context, creds Credentials) (*Result, error) {
	if err := p.validateCredentialShape(creds); err != nil {
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, "", "", false, err, nil)
		return nil, err
	}
	email := normalizeEmail(creds.Email)

	if err := p.rateCheck(ctx, email, rateActionSignIn); err != nil {
		p.metricInc(MetricSignInRateLimited)
		p.emitAudit(ctx, auditActionSignInRateLimited, "", "", false, err, func() map[string]string {
			return map[string]string{"identifier": email}
		})
		return nil, err
	}

	p.mu.RLock()
	record, ok := p.lookupByEmailLocked(email)
	var user User
	var hash string
	if ok {
		user = *record.user.Clone()
		hash = record.passwordHash
	}
	p.mu.RUnlock()

	if !ok {
		p.rateHit(ctx, email, rateActionSignIn)
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, "", "", false, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": email, "reason": "unknown_user"}
		})
		return nil, ErrInvalidCredentials
	}

	match, err := p.hasher.Verify(creds.Password, hash)
	if err != nil {
		p.metricInc(MetricProviderError)
		return nil, fmt.Errorf("%w: verify password: %w", ErrProviderUnavailable, err)
	}
	if !match {
		p.rateHit(ctx, email, rateActionSignIn)
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, user.ID, "", false, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": email, "reason": "password_mismatch"}
		})
		return nil, ErrInvalidCredentials
	}

	if user.Disabled {
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, user.ID, "", false, ErrUserDisabled, nil)
		return nil, ErrUserDisabled
	}
	if p.cfg.RequireVerifiedEmail && !user.EmailVerified {
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, user.ID, "", false, ErrEmailNotVerified, nil)
		return nil, ErrEmailNotVerified
	}

	sess, err := p.mintSession(ctx, &user)
	if err != nil {
		p.metricInc(MetricProviderError)
		return nil, err
	}

	now := p.now().UTC()
	p.mu.Lock()
	if stored, ok := p.users[user.ID]; ok {
		stored.user.LastLoginAt = now
	}
	p.mu.Unlock()
	user.LastLoginAt = now

	p.rateReset(ctx, email, rateActionSignIn)
	p.metricInc(MetricSignInSuccess)
	p.emitAudit(ctx, auditActionSignInSuccess, user.ID, sess.ID, true, nil, nil)

	return p.result(&user, sess), nil
}

// SignOut implements [Provider]. Revoking sessions that no longer exist is
// not an error.
func (p *MemoryProvider) SignOut(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}

	if sessionID == "" {
		count, err := p.sessions.DeleteByUser(ctx, userID)
		if err != nil {
			p.metricInc(MetricProviderError)
			return fmt.Errorf("%w: revoke sessions: %w", ErrProviderUnavailable, err)
		}
		for i := 0; i < count; i++ {
			p.metricInc(MetricSessionRevoked)
		}
		p.metricInc(MetricSignOutAll)
		p.emitAudit(ctx, auditActionSignOutAll, userID, "", true, nil, func() map[string]string {
			return map[string]string{"revoked": fmt.Sprint(count)}
		})
		return nil
	}

	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		p.metricInc(MetricProviderError)
		return fmt.Errorf("%w: load session: %w", ErrProviderUnavailable, err)
	}
	if sess.UserID != userID {
		return ErrSessionNotFound
	}
	if err := p.sessions.Delete(ctx, sessionID); err != nil {
		p.metricInc(MetricProviderError)
		return fmt.Errorf("%w: revoke session: %w", ErrProviderUnavailable, err)
	}

	p.metricInc(MetricSessionRevoked)
	p.metricInc(MetricSignOut)
	p.emitAudit(ctx, auditActionSignOut, userID, sessionID, true, nil, nil)
	return nil
}

// ValidateToken implements [Provider]. A session past its refresh window is
// removed on detection; one past only its access expiry is kept so its
// refresh token can still rotate it.
func (p *MemoryProvider) ValidateToken(ctx context.Context, accessToken string) (*User, error) {
	start := p.now()
	defer p.observeValidate(start)

	if accessToken == "" {
		p.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: token required", ErrValidation)
	}

	claims, err := p.parseAccessToken(accessToken)
	if err != nil {
		p.metricInc(MetricValidateFailure)
		p.emitAudit(ctx, auditActionValidateFailure, "", "", false, err, nil)
		return nil, err
	}

	sess, err := p.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		p.metricInc(MetricValidateFailure)
		p.emitAudit(ctx, auditActionValidateFailure, claims.Subject, claims.SessionID, false, ErrTokenInvalid, nil)
		return nil, fmt.Errorf("%w: session revoked or unknown", ErrTokenInvalid)
	}
	if sess.AccessToken != accessToken {
		p.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: token retired by rotation", ErrTokenInvalid)
	}

	now := p.now()
	if sess.RefreshExpired(now) {
		_ = p.sessions.Delete(ctx, sess.ID)
		p.metricInc(MetricSessionExpired)
		p.metricInc(MetricValidateFailure)
		p.emitAudit(ctx, auditActionSessionExpired, sess.UserID, sess.ID, false, ErrTokenExpired, nil)
		return nil, fmt.Errorf("%w: refresh window elapsed", ErrTokenExpired)
	}
	if sess.Expired(now) {
		p.metricInc(MetricValidateFailure)
		p.emitAudit(ctx, auditActionValidateFailure, sess.UserID, sess.ID, false, ErrTokenExpired, nil)
		return nil, ErrTokenExpired
	}

	if err := p.sessions.Touch(ctx, sess.ID, now.UTC()); err != nil && !errors.Is(err, session.ErrNotFound) {
		p.metricInc(MetricProviderError)
		return nil, fmt.Errorf("%w: touch session: %w", ErrProviderUnavailable, err)
	}

	p.mu.RLock()
	record, ok := p.users[sess.UserID]
	var user *User
	if ok {
		user = record.user.Clone()
	}
	p.mu.RUnlock()
	if !ok {
		p.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: session owner no longer exists", ErrTokenInvalid)
	}
	if user.Disabled {
		p.metricInc(MetricValidateFailure)
		return nil, ErrUserDisabled
	}

	p.metricInc(MetricValidateSuccess)
	return user, nil
}

// RefreshToken implements [Provider]. The presented token is consumed
// atomically: two racing refreshes admit at most one winner.
func (p *MemoryProvider) RefreshToken(ctx context.Context, refreshToken string) (*Result, error) {
	if refreshToken == "" {
		p.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: refresh token required", ErrValidation)
	}

	sess, err := p.sessions.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		p.metricInc(MetricRefreshFailure)
		p.emitAudit(ctx, auditActionRefreshFailure, "", "", false, ErrRefreshInvalid, nil)
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		p.metricInc(MetricProviderError)
		return nil, fmt.Errorf("%w: consume refresh token: %w", ErrProviderUnavailable, err)
	}

	if sess.RefreshExpired(p.now()) {
		p.metricInc(MetricRefreshFailure)
		p.metricInc(MetricSessionExpired)
		p.emitAudit(ctx, auditActionSessionExpired, sess.UserID, sess.ID, false, ErrTokenExpired, nil)
		return nil, fmt.Errorf("%w: refresh window elapsed", ErrTokenExpired)
	}

	p.mu.RLock()
	record, ok := p.users[sess.UserID]
	var user *User
	if ok {
		user = record.user.Clone()
	}
	p.mu.RUnlock()
	if !ok {
		p.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: session owner no longer exists", ErrRefreshInvalid)
	}
	if user.Disabled {
		p.metricInc(MetricRefreshFailure)
		return nil, ErrUserDisabled
	}

	fresh, err := p.mintSession(ctx, user)
	if err != nil {
		p.metricInc(MetricRefreshFailure)
		p.metricInc(MetricProviderError)
		return nil, err
	}

	p.metricInc(MetricRefreshSuccess)
	p.emitAudit(ctx, auditActionRefreshSuccess, user.ID, fresh.ID, true, nil, func() map[string]string {
		return map[string]string{"retired_session": sess.ID}
	})
	return p.result(user, fresh), nil
}

// SendPasswordReset implements [Provider]. It reports true for every
// well-formed email whether or not an account exists; only the audit trail
// carries the distinction.
func (p *MemoryProvider) SendPasswordReset(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || !validEmail(email) {
		return false, fmt.Errorf("%w: malformed email", ErrValidation)
	}

	if err := p.rateCheck(ctx, email, rateActionPasswordReset); err != nil {
		return false, err
	}
	p.rateHit(ctx, email, rateActionPasswordReset)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.metricInc(MetricPasswordResetRequest)

	record, ok := p.lookupByEmailLocked(email)
	if !ok {
		p.emitAudit(ctx, auditActionPasswordResetRequest, "", "", true, nil, func() map[string]string {
			return map[string]string{"identifier": email, "account": "unknown"}
		})
		return true, nil
	}

	secret, err := internal.NewSecret()
	if err != nil {
		p.metricInc(MetricProviderError)
		return false, fmt.Errorf("%w: generate reset token: %w", ErrProviderUnavailable, err)
	}
	token := hex.EncodeToString(secret[:])
	digest := internal.HashToken(token)

	p.resets[hex.EncodeToString(digest[:])] = resetChallenge{
		email:   email,
		expires: p.now().Add(resetTokenTTL),
	}
	p.lastResetTo[email] = token

	p.emitAudit(ctx, auditActionPasswordResetRequest, record.user.ID, "", true, nil, func() map[string]string {
		return map[string]string{"identifier": email}
	})
	return true, nil
}

// LatestResetToken returns the most recent reset token issued for email.
// The memory backend has no mail transport; this is the demo and test
// delivery channel.
func (p *MemoryProvider) LatestResetToken(email string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	token, ok := p.lastResetTo[normalizeEmail(email)]
	return token, ok
}

// ResetPassword implements [Provider]. The token is consumed on first use,
// valid or not remains single-shot; all sessions of the user are revoked.
func (p *MemoryProvider) ResetPassword(ctx context.Context, token, newPassword string) (*Result, error) {
	if token == "" {
		p.metricInc(MetricPasswordResetFailure)
		return nil, fmt.Errorf("%w: reset token required", ErrValidation)
	}
	if err := p.checkPolicy(newPassword); err != nil {
		p.metricInc(MetricPasswordResetFailure)
		return nil, err
	}

	digest := internal.HashToken(token)
	key := hex.EncodeToString(digest[:])

	p.mu.Lock()
	challenge, ok := p.resets[key]
	if ok {
		delete(p.resets, key)
	}
	var record *memoryUser
	if ok && !p.now().After(challenge.expires) {
		record, _ = p.lookupByEmailLocked(challenge.email)
	}
	var userID string
	var hashErr error
	if record != nil {
		var hash string
		hash, hashErr = p.hasher.Hash(newPassword)
		if hashErr == nil {
			record.passwordHash = hash
			record.user.UpdatedAt = p.now().UTC()
			userID = record.user.ID
			delete(p.lastResetTo, challenge.email)
		}
	}
	var user *User
	if record != nil {
		user = record.user.Clone()
	}
	p.mu.Unlock()

	if hashErr != nil {
		p.metricInc(MetricProviderError)
		return nil, fmt.Errorf("%w: hash password: %w", ErrProviderUnavailable, hashErr)
	}
	if user == nil {
		p.metricInc(MetricPasswordResetFailure)
		p.emitAudit(ctx, auditActionPasswordResetFailure, "", "", false, ErrResetTokenInvalid, nil)
		return nil, ErrResetTokenInvalid
	}

	if err := p.revokeAll(ctx, userID); err != nil {
		return nil, err
	}

	sess, err := p.mintSession(ctx, user)
	if err != nil {
		p.metricInc(MetricProviderError)
		return nil, err
	}

	p.rateReset(ctx, user.Email, rateActionPasswordReset)
	p.metricInc(MetricPasswordResetSuccess)
	p.emitAudit(ctx, auditActionPasswordResetSuccess, userID, sess.ID, true, nil, nil)
	return p.result(user, sess), nil
}

// ChangePassword implements [Provider]. Every existing session is revoked;
// the returned result carries the only surviving token pair.
func (p *MemoryProvider) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*Result, error) {
	if userID == "" || currentPassword == "" {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, fmt.Errorf("%w: user id and current password required", ErrValidation)
	}
	if err := p.checkPolicy(newPassword); err != nil {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, err
	}

	p.mu.RLock()
	record, ok := p.users[userID]
	var hash string
	if ok {
		hash = record.passwordHash
	}
	p.mu.RUnlock()
	if !ok {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, ErrUserNotFound
	}

	match, err := p.hasher.Verify(currentPassword, hash)
	if err != nil {
		p.metricInc(MetricProviderError)
		return nil, fmt.Errorf("%w: verify password: %w", ErrProviderUnavailable, err)
	}
	if !match {
		p.metricInc(MetricPasswordChangeFailure)
		p.emitAudit(ctx, auditActionPasswordChange, userID, "", false, ErrPasswordMismatch, nil)
		return nil, ErrPasswordMismatch
	}

	newHash, err := p.hasher.Hash(newPassword)
	if err != nil {
		p.metricInc(MetricProviderError)
		return nil, fmt.Errorf("%w: hash password: %w", ErrProviderUnavailable, err)
	}

	p.mu.Lock()
	record, ok = p.users[userID]
	var user *User
	if ok {
		record.passwordHash = newHash
		record.user.UpdatedAt = p.now().UTC()
		user = record.user.Clone()
	}
	p.mu.Unlock()
	if !ok {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, ErrUserNotFound
	}

	if err := p.revokeAll(ctx, userID); err != nil {
		return nil, err
	}
	sess, err := p.mintSession(ctx, user)
	if err != nil {
		p.metricInc(MetricProviderError)
		return nil, err
	}

	p.metricInc(MetricPasswordChangeSuccess)
	p.emitAudit(ctx, auditActionPasswordChange, userID, sess.ID, true, nil, nil)
	return p.result(user, sess), nil
}

// UpdateProfile implements [Provider]. The returned result carries the
// updated user with empty token material: a profile update does not touch
// sessions.
func (p *MemoryProvider) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Result, error) {
	if userID == "" {
		p.metricInc(MetricProfileUpdateFailure)
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	now := p.now().UTC()

	p.mu.Lock()
	record, ok := p.users[userID]
	var user *User
	if ok {
		record.user = *applyProfileUpdate(&record.user, update, now)
		user = record.user.Clone()
	}
	p.mu.Unlock()

	if !ok {
		p.metricInc(MetricProfileUpdateFailure)
		return nil, ErrUserNotFound
	}

	p.metricInc(MetricProfileUpdateSuccess)
	p.emitAudit(ctx, auditActionProfileUpdate, userID, "", true, nil, nil)
	return &Result{User: user}, nil
}

// UserExists implements [Provider].
func (p *MemoryProvider) UserExists(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || !validEmail(email) {
		return false, fmt.Errorf("%w: malformed email", ErrValidation)
	}

	p.mu.RLock()
	_, ok := p.lookupByEmailLocked(email)
	p.mu.RUnlock()
	return ok, nil
}

// UserByID implements [Provider].
func (p *MemoryProvider) UserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	p.mu.RLock()
	record, ok := p.users[id]
	var user *User
	if ok {
		user = record.user.Clone()
	}
	p.mu.RUnlock()

	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UserSessions implements [Provider]. Sessions past their refresh window
// are removed during the listing; access-expired but refreshable sessions
// are not listed either, since their access tokens no longer validate.
func (p *MemoryProvider) UserSessions(ctx context.Context, userID string) ([]session.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	all, err := p.sessions.ListByUser(ctx, userID)
	if err != nil {
		p.metricInc(MetricProviderError)
		return nil, fmt.Errorf("%w: list sessions: %w", ErrProviderUnavailable, err)
	}

	now := p.now()
	live := all[:0]
	for _, sess := range all {
		if sess.RefreshExpired(now) {
			_ = p.sessions.Delete(ctx, sess.ID)
			p.metricInc(MetricSessionExpired)
			continue
		}
		if sess.Expired(now) {
			continue
		}
		live = append(live, sess)
	}
	return live, nil
}

// RevokeSession implements [Provider].
func (p *MemoryProvider) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id required", ErrValidation)
	}
	return p.SignOut(ctx, userID, sessionID)
}

// RevokeAllSessions implements [Provider].
func (p *MemoryProvider) RevokeAllSessions(ctx context.Context, userID string) error {
	return p.SignOut(ctx, userID, "")
}

// HealthCheck implements [Provider]. The memory backend is healthy as long
// as its session store responds.
func (p *MemoryProvider) HealthCheck(ctx context.Context) error {
	if p == nil || p.sessions == nil {
		return ErrProviderNotReady
	}
	if _, err := p.sessions.ListByUser(ctx, "healthcheck"); err != nil {
		return fmt.Errorf("%w: session store: %w", ErrProviderUnavailable, err)
	}
	return nil
}

// revokeAll deletes every session of the user, counting revocations.
func (p *MemoryProvider) revokeAll(ctx context.Context, userID string) error {
	count, err := p.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		p.metricInc(MetricProviderError)
		return fmt.Errorf("%w: revoke sessions: %w", ErrProviderUnavailable, err)
	}
	for i := 0; i < count; i++ {
		p.metricInc(MetricSessionRevoked)
	}
	return nil
}

// lookupByEmailLocked requires p.mu held in at least read mode. Linear scan
// is avoided via the byEmail index.
func (p *MemoryProvider) lookupByEmailLocked(email string) (*memoryUser, bool) {
	id, ok := p.byEmail[email]
	if !ok {
		return nil, false
	}
	record, ok := p.users[id]
	return record, ok
}
