package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shiftcrew/authkit/internal/sanitize"
	"github.com/shiftcrew/authkit/session"
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteProvider adapts the contract to an external identity service over
// HTTP. The remote service owns users and sessions; this adapter only
// translates shapes and errors. Session enumeration and per-session
// revocation are not expressible remotely: RevokeSession and
// RevokeAllSessions both degrade to a remote logout-all, and UserSessions
// reports [ErrNotSupported].
type RemoteProvider struct {
	core

	remote RemoteConfig
	client *http.Client
	base   string
}

func newRemoteProvider(c core) (*RemoteProvider, error) {
	rc := c.cfg.Provider.Remote
	if rc.BaseURL == "" {
		return nil, errors.New("remote provider requires BaseURL")
	}
	if rc.Timeout <= 0 {
		rc.Timeout = defaultRemoteTimeout
	}
	client := rc.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: rc.Timeout}
	}

	return &RemoteProvider{
		core:   c,
		remote: rc,
		client: client,
		base:   strings.TrimRight(rc.BaseURL, "/"),
	}, nil
}

// remoteUser is the account shape returned by the remote service.
type remoteUser struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	Role             string            `json:"role"`
	UserMetadata     map[string]string `json:"user_metadata"`
	AppMetadata      remoteAppMeta     `json:"app_metadata"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at"`
	PhoneConfirmedAt *time.Time        `json:"phone_confirmed_at"`
	BannedUntil      *time.Time        `json:"banned_until"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	LastSignInAt     *time.Time        `json:"last_sign_in_at"`
}

type remoteAppMeta struct {
	OrgID    string `json:"org_id"`
	Role     string `json:"role"`
	Disabled bool   `json:"disabled"`
}

// remoteSession is the token payload returned by the remote token and
// verify endpoints.
type remoteSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	User         remoteUser `json:"user"`
}

func (p *RemoteProvider) toUser(ru remoteUser) *User {
	role := Role(ru.AppMetadata.Role)
	if role == "" {
		role = Role(ru.Role)
	}
	if !role.Valid() {
		role = RoleGuest
	}

	user := &User{
		ID:            ru.ID,
		Email:         normalizeEmail(ru.Email),
		Role:          role,
		OrgID:         ru.AppMetadata.OrgID,
		Disabled:      ru.AppMetadata.Disabled || (ru.BannedUntil != nil && ru.BannedUntil.After(p.now())),
		EmailVerified: ru.EmailConfirmedAt != nil,
		PhoneVerified: ru.PhoneConfirmedAt != nil,
		CreatedAt:     ru.CreatedAt,
		UpdatedAt:     ru.UpdatedAt,
	}
	if ru.LastSignInAt != nil {
		user.LastLoginAt = *ru.LastSignInAt
	}
	if ru.UserMetadata != nil {
		if name, ok := ru.UserMetadata["name"]; ok {
			user.DisplayName = sanitize.DisplayName(name)
		}
		user.Metadata = sanitize.Metadata(ru.UserMetadata)
	}
	return user
}

func (p *RemoteProvider) toResult(rs remoteSession) *Result {
	return &Result{
		User:         p.toUser(rs.User),
		AccessToken:  rs.AccessToken,
		RefreshToken: rs.RefreshToken,
		ExpiresAt:    p.now().UTC().Add(time.Duration(rs.ExpiresIn) * time.Second),
	}
}

// do performs one remote call. bearer selects the Authorization header:
// empty means none, otherwise the given token. The apikey header is always
// sent. Non-2xx responses run through [mapRemoteError]; a success body that
// does not decode into out is a provider error.
func (p *RemoteProvider) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	endpoint := p.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %w", ErrProviderUnavailable, err)
		}
		reader = bytes.NewReader(payload)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.remote.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrProviderUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.remote.APIKey != "" {
		req.Header.Set("apikey", p.remote.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.metricInc(MetricProviderError)
		return fmt.Errorf("%w: %s %s: %w", ErrProviderUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		p.metricInc(MetricProviderError)
		return fmt.Errorf("%w: read response: %w", ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapRemoteError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			p.metricInc(MetricProviderError)
			return fmt.Errorf("%w: decode response: %w", ErrProviderUnavailable, err)
		}
	}
	return nil
}

func (p *RemoteProvider) adminBearer() (string, error) {
	if p.remote.AdminToken == "" {
		return "", fmt.Errorf("%w: admin token not configured", ErrNotSupported)
	}
	return p.remote.AdminToken, nil
}

// SignIn implements [Provider].
func (p *RemoteProvider) SignIn(ctx context.Context, creds Credentials) (*Result, error) {
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

	var rs remoteSession
	err := p.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}},
		map[string]string{"email": email, "password": creds.Password}, "", &rs)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserNotFound) {
			p.rateHit(ctx, email, rateActionSignIn)
			p.metricInc(MetricSignInFailure)
			p.emitAudit(ctx, auditActionSignInFailure, "", "", false, err, func() map[string]string {
				return map[string]string{"identifier": email}
			})
			// Unknown users and bad passwords are indistinguishable to the
			// caller; the audit trail already carries the remote detail.
			return nil, ErrInvalidCredentials
		}
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, "", "", false, err, nil)
		return nil, err
	}

	result := p.toResult(rs)
	if result.User.Disabled {
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, result.User.ID, "", false, ErrUserDisabled, nil)
		return nil, ErrUserDisabled
	}
	if p.cfg.RequireVerifiedEmail && !result.User.EmailVerified {
		p.metricInc(MetricSignInFailure)
		p.emitAudit(ctx, auditActionSignInFailure, result.User.ID, "", false, ErrEmailNotVerified, nil)
		return nil, ErrEmailNotVerified
	}

	p.rateReset(ctx, email, rateActionSignIn)
	p.metricInc(MetricSignInSuccess)
	p.metricInc(MetricSessionCreated)
	p.emitAudit(ctx, auditActionSignInSuccess, result.User.ID, "", true, nil, nil)
	return result, nil
}

// SignOut implements [Provider]. The remote service has no per-session
// logout for a third party, so both forms degrade to an admin logout-all
// for the user. This is weaker than per-session revocation.
func (p *RemoteProvider) SignOut(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}
	admin, err := p.adminBearer()
	if err != nil {
		return err
	}

	if err := p.do(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/logout", nil, nil, admin, nil); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Idempotent: signing out a vanished user is a no-op.
			return nil
		}
		return err
	}

	if sessionID == "" {
		p.metricInc(MetricSignOutAll)
		p.emitAudit(ctx, auditActionSignOutAll, userID, "", true, nil, nil)
	} else {
		p.metricInc(MetricSignOut)
		p.emitAudit(ctx, auditActionSignOut, userID, sessionID, true, nil, func() map[string]string {
			return map[string]string{"degraded_to": "logout_all"}
		})
	}
	return nil
}

// ValidateToken implements [Provider].
func (p *RemoteProvider) ValidateToken(ctx context.Context, accessToken string) (*User, error) {
	start := p.now()
	defer p.observeValidate(start)

	if accessToken == "" {
		p.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: token required", ErrValidation)
	}

	var ru remoteUser
	if err := p.do(ctx, http.MethodGet, "/user", nil, nil, accessToken, &ru); err != nil {
		p.metricInc(MetricValidateFailure)
		p.emitAudit(ctx, auditActionValidateFailure, "", "", false, err, nil)
		return nil, err
	}

	user := p.toUser(ru)
	if user.Disabled {
		p.metricInc(MetricValidateFailure)
		return nil, ErrUserDisabled
	}

	p.metricInc(MetricValidateSuccess)
	return user, nil
}

// RefreshToken implements [Provider]. Rotation happens remotely; a
// consumed token maps to [ErrRefreshInvalid] through the error mapper.
func (p *RemoteProvider) RefreshToken(ctx context.Context, refreshToken string) (*Result, error) {
	if refreshToken == "" {
		p.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: refresh token required", ErrValidation)
	}

	var rs remoteSession
	err := p.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": refreshToken}, "", &rs)
	if err != nil {
		p.metricInc(MetricRefreshFailure)
		p.emitAudit(ctx, auditActionRefreshFailure, "", "", false, err, nil)
		return nil, err
	}

	result := p.toResult(rs)
	p.metricInc(MetricRefreshSuccess)
	p.metricInc(MetricSessionCreated)
	p.emitAudit(ctx, auditActionRefreshSuccess, result.User.ID, "", true, nil, nil)
	return result, nil
}

// SendPasswordReset implements [Provider]. The remote service hides account
// existence itself; any 2xx means "sent if the account exists".
func (p *RemoteProvider) SendPasswordReset(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || !validEmail(email) {
		return false, fmt.Errorf("%w: malformed email", ErrValidation)
	}

	if err := p.rateCheck(ctx, email, rateActionPasswordReset); err != nil {
		return false, err
	}
	p.rateHit(ctx, email, rateActionPasswordReset)

	if err := p.do(ctx, http.MethodPost, "/recover", nil, map[string]string{"email": email}, "", nil); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Existence must not leak through this operation.
			p.metricInc(MetricPasswordResetRequest)
			return true, nil
		}
		return false, err
	}

	p.metricInc(MetricPasswordResetRequest)
	p.emitAudit(ctx, auditActionPasswordResetRequest, "", "", true, nil, func() map[string]string {
		return map[string]string{"identifier": email}
	})
	return true, nil
}

// ResetPassword implements [Provider]. The recovery token is exchanged for
// a session, the password updated under that session, and every other
// session revoked via admin logout when an admin token is configured.
func (p *RemoteProvider) ResetPassword(ctx context.Context, token, newPassword string) (*Result, error) {
	if token == "" {
		p.metricInc(MetricPasswordResetFailure)
		return nil, fmt.Errorf("%w: reset token required", ErrValidation)
	}
	if err := p.checkPolicy(newPassword); err != nil {
		p.metricInc(MetricPasswordResetFailure)
		return nil, err
	}

	var rs remoteSession
	err := p.do(ctx, http.MethodPost, "/verify", nil,
		map[string]string{"type": "recovery", "token": token}, "", &rs)
	if err != nil {
		p.metricInc(MetricPasswordResetFailure)
		p.emitAudit(ctx, auditActionPasswordResetFailure, "", "", false, err, nil)
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrUserNotFound) {
			// Unknown and expired tokens are reported identically.
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}

	var ru remoteUser
	if err := p.do(ctx, http.MethodPut, "/user", nil,
		map[string]string{"password": newPassword}, rs.AccessToken, &ru); err != nil {
		p.metricInc(MetricPasswordResetFailure)
		return nil, err
	}
	rs.User = ru

	if p.remote.AdminToken != "" {
		// Best effort: the fresh recovery session survives remotely either
		// way, and the returned material is the pair callers should keep.
		_ = p.do(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(ru.ID)+"/logout", nil, nil, p.remote.AdminToken, nil)
	}

	p.metricInc(MetricPasswordResetSuccess)
	p.emitAudit(ctx, auditActionPasswordResetSuccess, ru.ID, "", true, nil, nil)
	return p.toResult(rs), nil
}

// ChangePassword implements [Provider]. The current password is verified by
// re-authenticating, which needs the account email from the admin API.
func (p *RemoteProvider) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*Result, error) {
	if userID == "" || currentPassword == "" {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, fmt.Errorf("%w: user id and current password required", ErrValidation)
	}
	if err := p.checkPolicy(newPassword); err != nil {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, err
	}

	admin, err := p.adminBearer()
	if err != nil {
		return nil, err
	}

	var ru remoteUser
	if err := p.do(ctx, http.MethodGet, "/admin/users/"+url.PathEscape(userID), nil, nil, admin, &ru); err != nil {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, err
	}

	var rs remoteSession
	err = p.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}},
		map[string]string{"email": ru.Email, "password": currentPassword}, "", &rs)
	if err != nil {
		p.metricInc(MetricPasswordChangeFailure)
		p.emitAudit(ctx, auditActionPasswordChange, userID, "", false, ErrPasswordMismatch, nil)
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrPasswordMismatch
		}
		return nil, err
	}

	var updated remoteUser
	if err := p.do(ctx, http.MethodPut, "/user", nil,
		map[string]string{"password": newPassword}, rs.AccessToken, &updated); err != nil {
		p.metricInc(MetricPasswordChangeFailure)
		return nil, err
	}
	rs.User = updated

	_ = p.do(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/logout", nil, nil, admin, nil)

	p.metricInc(MetricPasswordChangeSuccess)
	p.emitAudit(ctx, auditActionPasswordChange, userID, "", true, nil, nil)
	return p.toResult(rs), nil
}

// UpdateProfile implements [Provider]. Metadata passes through the same
// allow-list as the memory backend before leaving the process.
func (p *RemoteProvider) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Result, error) {
	if userID == "" {
		p.metricInc(MetricProfileUpdateFailure)
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}
	admin, err := p.adminBearer()
	if err != nil {
		return nil, err
	}

	meta := sanitize.Metadata(update.Metadata)
	if update.DisplayName != nil {
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		meta["name"] = sanitize.DisplayName(*update.DisplayName)
	}

	var ru remoteUser
	if err := p.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID), nil,
		map[string]any{"user_metadata": meta}, admin, &ru); err != nil {
		p.metricInc(MetricProfileUpdateFailure)
		return nil, err
	}

	p.metricInc(MetricProfileUpdateSuccess)
	p.emitAudit(ctx, auditActionProfileUpdate, userID, "", true, nil, nil)
	return &Result{User: p.toUser(ru)}, nil
}

// UserExists implements [Provider].
func (p *RemoteProvider) UserExists(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || !validEmail(email) {
		return false, fmt.Errorf("%w: malformed email", ErrValidation)
	}
	admin, err := p.adminBearer()
	if err != nil {
		return false, err
	}

	var listing struct {
		Users []remoteUser `json:"users"`
	}
	if err := p.do(ctx, http.MethodGet, "/admin/users", url.Values{"email": {email}}, nil, admin, &listing); err != nil {
		return false, err
	}
	for _, ru := range listing.Users {
		if normalizeEmail(ru.Email) == email {
			return true, nil
		}
	}
	return false, nil
}

// UserByID implements [Provider].
func (p *RemoteProvider) UserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}
	admin, err := p.adminBearer()
	if err != nil {
		return nil, err
	}

	var ru remoteUser
	if err := p.do(ctx, http.MethodGet, "/admin/users/"+url.PathEscape(id), nil, nil, admin, &ru); err != nil {
		return nil, err
	}
	return p.toUser(ru), nil
}

// UserSessions implements [Provider]. The remote service does not expose
// per-session state to third parties.
func (p *RemoteProvider) UserSessions(ctx context.Context, userID string) ([]session.Session, error) {
	return nil, fmt.Errorf("%w: remote session enumeration", ErrNotSupported)
}

// RevokeSession implements [Provider]. Degrades to logout-all; see
// [RemoteProvider.SignOut].
func (p *RemoteProvider) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id required", ErrValidation)
	}
	return p.SignOut(ctx, userID, sessionID)
}

// RevokeAllSessions implements [Provider].
func (p *RemoteProvider) RevokeAllSessions(ctx context.Context, userID string) error {
	return p.SignOut(ctx, userID, "")
}

// HealthCheck implements [Provider].
func (p *RemoteProvider) HealthCheck(ctx context.Context) error {
	if p == nil || p.client == nil {
		return ErrProviderNotReady
	}
	if err := p.do(ctx, http.MethodGet, "/health", nil, nil, "", nil); err != nil {
		return fmt.Errorf("%w: health endpoint: %w", ErrProviderUnavailable, err)
	}
	return nil
}
