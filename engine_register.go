package authstack

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/taskhive/authstack/internal"
)

// RegisterInput carries the fields of a local signup.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Register creates a local, unverified account and emails it a verification
// code. The identity is persisted before the email goes out; a failed
// dispatch returns ErrEmailSendFailed but keeps the account, and the caller
// can retry with RequestEmailVerification.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (PublicUser, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return PublicUser{}, ErrInvalidCredentials
	}

	exists, err := e.users.ExistsByEmail(ctx, email)
	if err != nil {
		return PublicUser{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exists {
		e.emitAudit(ctx, EventRegisterDuplicate, 0, email, nil)
		return PublicUser{}, ErrEmailExists
	}

	hash, err := e.creds.hasher.Hash(in.Password)
	if err != nil {
		return PublicUser{}, fmt.Errorf("authstack: hash password: %w", err)
	}

	user := &User{
		PublicID:     uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         RoleUser,
		Provider:     ProviderLocal,
		Active:       true,
	}
	if err := e.users.Save(ctx, user); err != nil {
		return PublicUser{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricRegister)
	e.emitAudit(ctx, EventRegisterSuccess, user.ID, email, nil)

	if err := e.issueVerification(ctx, user); err != nil {
		return publicView(user), err
	}
	return publicView(user), nil
}

// RequestEmailVerification sends a fresh verification code to email. The
// call succeeds without sending when the address is unknown or already
// verified, so it leaks nothing about registered accounts.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil || user.EmailVerified {
		return nil
	}
	return e.issueVerification(ctx, user)
}

// VerifyEmail consumes a verification code for email. A correct code marks
// the account verified; any miss burns one attempt. Unknown addresses fail
// the same way as wrong codes.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)

	if err := e.otp.Consume(ctx, email, code); err != nil {
		if errors.Is(err, ErrOTPInvalid) {
			e.metrics.Inc(MetricOTPRejected)
			e.emitAudit(ctx, EventEmailVerifyFailed, 0, email, nil)
		}
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		// Account deleted between issue and consume.
		e.metrics.Inc(MetricOTPRejected)
		return ErrOTPInvalid
	}

	if !user.EmailVerified {
		user.EmailVerified = true
		if err := e.users.Save(ctx, user); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if err := e.mailer.SendWelcome(ctx, user.Email, user.FullName); err != nil {
			log.Printf("authstack: welcome mail for %s: %v", user.Email, err)
		}
	}

	e.metrics.Inc(MetricOTPVerified)
	e.emitAudit(ctx, EventEmailVerified, user.ID, email, nil)
	return nil
}

// issueVerification generates a code, stores its challenge and mails it,
// enforcing the per-address issuance window.
func (e *Engine) issueVerification(ctx context.Context, user *User) error {
	ok, err := e.otpLimiter.Allow(ctx, user.Email)
	if err != nil {
		return err
	}
	if !ok {
		e.metrics.Inc(MetricOTPRateLimited)
		e.emitAudit(ctx, EventOTPRateLimited, user.ID, user.Email, nil)
		return ErrOTPRateLimited
	}

	code, err := internal.NewOTP(e.cfg.OTP.Digits)
	if err != nil {
		return fmt.Errorf("authstack: generate otp: %w", err)
	}
	if err := e.otp.Save(ctx, user.Email, code); err != nil {
		return err
	}
	if err := e.mailer.SendOTPCode(ctx, user.Email, code); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	e.metrics.Inc(MetricOTPIssued)
	e.emitAudit(ctx, EventOTPIssued, user.ID, user.Email, nil)
	return nil
}
