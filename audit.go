package authkit

import (
	"context"

	"github.com/google/uuid"
)

// Audit action names. These are stable strings: downstream sinks key
// dashboards and alerts on them.
const (
	auditActionSignInSuccess        = "auth.sign_in.success"
	auditActionSignInFailure        = "auth.sign_in.failure"
	auditActionSignInRateLimited    = "auth.sign_in.rate_limited"
	auditActionSignOut              = "auth.sign_out"
	auditActionSignOutAll           = "auth.sign_out_all"
	auditActionValidateFailure      = "auth.validate.failure"
	auditActionRefreshSuccess       = "auth.refresh.success"
	auditActionRefreshFailure       = "auth.refresh.failure"
	auditActionSessionExpired       = "auth.session.expired"
	auditActionSessionRevoked       = "auth.session.revoked"
	auditActionPasswordResetRequest = "auth.password_reset.request"
	auditActionPasswordResetSuccess = "auth.password_reset.success"
	auditActionPasswordResetFailure = "auth.password_reset.failure"
	auditActionPasswordChange       = "auth.password_change"
	auditActionProfileUpdate        = "auth.profile_update"
)

const auditResourceSession = "session"

// emitAudit builds and dispatches one event. The metadata closure is only
// invoked when the dispatcher is active, keeping the disabled path
// allocation-free.
func (c *core) emitAudit(ctx context.Context, action, userID, sessionID string, success bool, opErr error, metadata func() map[string]string) {
	if c == nil || c.audit == nil {
		return
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: c.now().UTC(),
		Action:    action,
		Resource:  auditResourceSession,
		UserID:    userID,
		SessionID: sessionID,
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}

	var meta map[string]string
	if metadata != nil {
		meta = metadata()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if meta == nil {
			meta = make(map[string]string, 2)
		}
		meta["client_ip"] = ip
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		meta["user_agent"] = ua
	}
	event.Metadata = meta

	c.audit.Emit(ctx, event)
}
