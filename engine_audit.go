package authstack

import (
	"context"
	"time"
)

// Audit event names emitted by the engine.
const (
	EventLoginSuccess      = "login_success"
	EventLoginFailure      = "login_failure"
	EventLoginRateLimited  = "login_rate_limited"
	EventRegisterSuccess   = "register_success"
	EventRegisterDuplicate = "register_duplicate"
	EventOTPIssued         = "otp_issued"
	EventOTPRateLimited    = "otp_rate_limited"
	EventEmailVerified     = "email_verify_success"
	EventEmailVerifyFailed = "email_verify_failure"
	EventOAuthLogin        = "oauth_login"
	EventOAuthProvisioned  = "oauth_provisioned"
	EventOAuthLinked       = "oauth_linked"
	EventOAuthRejected     = "oauth_rejected"
	EventRefreshSuccess    = "refresh_success"
	EventRefreshRejected   = "refresh_rejected"
	EventLogoutSession     = "logout_session"
	EventLogoutAll         = "logout_all"
)

// emitAudit fills caller metadata from the context and hands the event to
// the dispatcher. A nil dispatcher means auditing is disabled.
func (e *Engine) emitAudit(ctx context.Context, event string, userID int64, email string, meta map[string]string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(AuditEvent{
		Time:      time.Now().UTC(),
		Event:     event,
		UserID:    userID,
		Email:     email,
		ClientIP:  ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Meta:      meta,
	})
}
