package authstack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// LoginWithProvider authenticates a federated identity token and reconciles
// it against the user store, then issues the same bundle a password login
// would.
//
// Reconciliation order:
//
//  1. An account already bound to (provider, providerId) logs straight in,
//     whether or not the token carries an email.
//  2. Otherwise a token without an email claim is rejected; no identity is
//     created.
//  3. Otherwise, an account with the same email is linked to the provider
//     when linking is enabled and the provider asserts the email as
//     verified; else the login is rejected with ErrEmailExists.
//  4. Otherwise a new account is provisioned, active, with the
//     email-verified flag taken from the provider's assertion.
func (e *Engine) LoginWithProvider(ctx context.Context, provider ProviderKind, rawToken string) (*AuthBundle, error) {
	verifier, ok := e.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnknown, provider)
	}

	identity, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		e.metrics.Inc(MetricOAuthRejected)
		e.emitAudit(ctx, EventOAuthRejected, 0, "", map[string]string{
			"provider": string(provider),
			"reason":   "verification",
		})
		return nil, fmt.Errorf("%w: %v", ErrProviderVerification, err)
	}

	user, err := e.reconcileFederated(ctx, provider, identity)
	if err != nil {
		return nil, err
	}

	user.LastLoginAt = time.Now().UTC()
	if err := e.users.Save(ctx, user); err != nil {
		log.Printf("authstack: last login update for %s: %v", user.Email, err)
	}

	bundle, err := e.issueBundle(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricOAuthLogin)
	e.emitAudit(ctx, EventOAuthLogin, user.ID, user.Email, map[string]string{"provider": string(provider)})
	return bundle, nil
}

func (e *Engine) reconcileFederated(ctx context.Context, provider ProviderKind, identity *FederatedIdentity) (*User, error) {
	user, err := e.users.FindByProviderIdentity(ctx, provider, identity.ProviderID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user != nil {
		return user, nil
	}

	// Only unknown provider identities need an email to reconcile against.
	if identity.Email == "" {
		e.metrics.Inc(MetricOAuthRejected)
		e.emitAudit(ctx, EventOAuthRejected, 0, "", map[string]string{
			"provider": string(provider),
			"reason":   "no_email",
		})
		return nil, ErrProviderEmailRequired
	}
	email := normalizeEmail(identity.Email)

	user, err = e.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user != nil {
		// The email belongs to an existing account not yet bound to this
		// provider. Linking is gated on configuration and on the provider
		// asserting the email as verified, or a stolen claim could take
		// over a password account.
		if !e.cfg.OAuth.AllowAccountLinking || !identity.EmailVerified {
			e.metrics.Inc(MetricOAuthRejected)
			e.emitAudit(ctx, EventOAuthRejected, user.ID, email, map[string]string{
				"provider": string(provider),
				"reason":   "email_taken",
			})
			return nil, ErrEmailExists
		}
		user.Provider = provider
		user.ProviderID = identity.ProviderID
		user.EmailVerified = true
		if err := e.users.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.emitAudit(ctx, EventOAuthLinked, user.ID, email, map[string]string{"provider": string(provider)})
		return user, nil
	}

	user = &User{
		PublicID:      uuid.NewString(),
		Email:         email,
		FullName:      identity.FullName,
		Role:          RoleUser,
		Provider:      provider,
		ProviderID:    identity.ProviderID,
		EmailVerified: identity.EmailVerified,
		Active:        true,
	}
	if err := e.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.emitAudit(ctx, EventOAuthProvisioned, user.ID, email, map[string]string{"provider": string(provider)})
	return user, nil
}
