package authstack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/taskhive/authstack/internal"
	"github.com/taskhive/authstack/jwt"
	"github.com/taskhive/authstack/session"
)

// Engine is the authentication facade. Construct it with [NewBuilder]; the
// zero value is unusable. All methods are safe for concurrent use.
type Engine struct {
	cfg Config

	users  UserStore
	mailer Mailer
	creds  credentialVerifier

	tokens   *jwt.Manager
	sessions *session.Store
	otp      *otpChallengeStore

	otpLimiter   *fixedWindowLimiter
	loginLimiter *fixedWindowLimiter

	verifiers map[ProviderKind]IdentityVerifier

	audit   *auditDispatcher
	metrics *Metrics
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies an email/password pair and, on success, issues an access
// token and a refresh session bound to the calling device.
//
// Failure modes are checked in a fixed order so an attacker cannot probe
// account state with a wrong password: credentials first, then email
// verification, then account status.
func (e *Engine) Login(ctx context.Context, email, password string) (*AuthBundle, error) {
	email = normalizeEmail(email)

	if e.loginLimiter != nil {
		ok, err := e.loginLimiter.Allow(ctx, email)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.metrics.Inc(MetricLoginFailure)
			e.emitAudit(ctx, EventLoginRateLimited, 0, email, nil)
			return nil, ErrInvalidCredentials
		}
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil || !e.creds.verify(password, user.PasswordHash) {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, EventLoginFailure, 0, email, map[string]string{"reason": "credentials"})
		return nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, EventLoginFailure, user.ID, email, map[string]string{"reason": "unverified"})
		return nil, ErrEmailNotVerified
	}
	if !user.Active {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, EventLoginFailure, user.ID, email, map[string]string{"reason": "disabled"})
		return nil, ErrAccountDisabled
	}

	user.LastLoginAt = time.Now().UTC()
	if err := e.users.Save(ctx, user); err != nil {
		// Login timestamps are best effort.
		log.Printf("authstack: last login update for %s: %v", email, err)
	}

	bundle, err := e.issueBundle(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, EventLoginSuccess, user.ID, email, nil)
	return bundle, nil
}

// Refresh rotates the refresh session identified by token and issues a new
// access token. The presented token is always invalidated; a token bound to
// a different device is revoked and rejected.
func (e *Engine) Refresh(ctx context.Context, token string) (*AuthBundle, error) {
	device := internal.Fingerprint(UserAgentFromContext(ctx), ClientIPFromContext(ctx))

	sess, newToken, err := e.sessions.Rotate(ctx, token, device, internal.NewSessionToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrDeviceMismatch):
			e.metrics.Inc(MetricRefreshRejected)
			e.emitAudit(ctx, EventRefreshRejected, 0, "", map[string]string{"reason": reasonFor(err)})
			return nil, ErrTokenInvalid
		case errors.Is(err, session.ErrRedisUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		default:
			return nil, err
		}
	}

	user, err := e.users.FindByPublicID(ctx, sess.PublicID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		_ = e.sessions.Delete(ctx, newToken)
		e.metrics.Inc(MetricRefreshRejected)
		e.emitAudit(ctx, EventRefreshRejected, sess.UserID, "", map[string]string{"reason": "account_gone"})
		return nil, ErrTokenInvalid
	}
	if !user.Active {
		_ = e.sessions.Delete(ctx, newToken)
		e.metrics.Inc(MetricRefreshRejected)
		e.emitAudit(ctx, EventRefreshRejected, user.ID, user.Email, map[string]string{"reason": "disabled"})
		return nil, ErrAccountDisabled
	}

	access, err := e.tokens.CreateAccess(user.ID, user.PublicID, user.Email, string(user.Role))
	if err != nil {
		_ = e.sessions.Delete(ctx, newToken)
		return nil, fmt.Errorf("authstack: sign access token: %w", err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, EventRefreshSuccess, user.ID, user.Email, nil)
	return &AuthBundle{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.cfg.JWT.AccessTTL / time.Second),
		RefreshToken: newToken,
		User:         publicView(user),
	}, nil
}

// Logout revokes the refresh session for token. Unknown tokens succeed, so
// logout is idempotent.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if err := e.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, EventLogoutSession, 0, "", nil)
	return nil
}

// RevokeAllSessions revokes every refresh session of the user identified by
// publicID and returns how many were removed.
func (e *Engine) RevokeAllSessions(ctx context.Context, publicID string) (int, error) {
	user, err := e.users.FindByPublicID(ctx, publicID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return 0, nil
	}
	n, err := e.sessions.DeleteAllForUser(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, EventLogoutAll, user.ID, user.Email, map[string]string{"sessions": fmt.Sprint(n)})
	return n, nil
}

// Validate checks an access token and returns the identity it asserts.
// Validation is purely local; no store is consulted.
func (e *Engine) Validate(raw string) (*AccessIdentity, error) {
	start := time.Now()
	claims, err := e.tokens.ParseAccess(raw)
	if err != nil {
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}
	uid, err := claims.UserID()
	if err != nil {
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}
	if e.cfg.Metrics.EnableLatencyHistograms {
		e.metrics.ObserveValidate(time.Since(start))
	}
	e.metrics.Inc(MetricValidateSuccess)
	return &AccessIdentity{
		UserID:   uid,
		PublicID: claims.PID,
		Email:    claims.Email,
		Role:     Role(claims.Role),
	}, nil
}

// SessionInfo describes one live refresh session without exposing its token.
type SessionInfo struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ActiveSessions lists the live refresh sessions of the user identified by
// publicID, for device-management surfaces. Tokens stay server-side.
func (e *Engine) ActiveSessions(ctx context.Context, publicID string) ([]SessionInfo, error) {
	user, err := e.users.FindByPublicID(ctx, publicID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, nil
	}
	sessions, err := e.sessions.ActiveSessions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	out := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		out[i] = SessionInfo{CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt}
	}
	return out, nil
}

// ActiveSessionCount returns the number of live refresh sessions for the
// user identified by publicID.
func (e *Engine) ActiveSessionCount(ctx context.Context, publicID string) (int, error) {
	user, err := e.users.FindByPublicID(ctx, publicID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return 0, nil
	}
	n, err := e.sessions.ActiveCount(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Metrics returns the engine's counter set. It is nil-safe to read even
// when metrics are disabled.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Ping verifies the engine's Redis connection.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close flushes the audit queue. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e.audit != nil {
		e.audit.Close()
	}
}

// issueBundle signs an access token and opens a refresh session for user.
func (e *Engine) issueBundle(ctx context.Context, user *User) (*AuthBundle, error) {
	access, err := e.tokens.CreateAccess(user.ID, user.PublicID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("authstack: sign access token: %w", err)
	}

	device := internal.Fingerprint(UserAgentFromContext(ctx), ClientIPFromContext(ctx))
	_, refresh, err := e.sessions.Create(ctx, user.ID, user.PublicID, device, internal.NewSessionToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &AuthBundle{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.cfg.JWT.AccessTTL / time.Second),
		RefreshToken: refresh,
		User:         publicView(user),
	}, nil
}

func reasonFor(err error) string {
	if errors.Is(err, session.ErrDeviceMismatch) {
		return "device_mismatch"
	}
	return "unknown_token"
}
