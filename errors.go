package authstack

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown email or a password
	// mismatch. The two cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists is returned when registration or account linking would
	// collide with an existing email.
	ErrEmailExists = errors.New("email already registered")
	// ErrEmailNotVerified is returned by login for accounts still pending
	// email verification.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrOTPInvalid covers a missing, expired, exhausted, or mismatched OTP
	// challenge. Callers cannot tell which.
	ErrOTPInvalid = errors.New("invalid or expired verification code")
	// ErrOTPRateLimited is returned when OTP issuance exceeds the per-email
	// window ceiling.
	ErrOTPRateLimited = errors.New("too many verification code requests")
	// ErrTokenInvalid covers absent, expired, malformed, and
	// device-mismatched refresh tokens, and rejected access tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrAccountDisabled is returned when the account's active flag is off.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrProviderEmailRequired is returned when a federated identity carries
	// no email and no local account matches the provider identity.
	ErrProviderEmailRequired = errors.New("email required for provider login")
	// ErrProviderVerification is returned when the upstream identity
	// verifier rejects or cannot validate the presented provider token.
	ErrProviderVerification = errors.New("provider token verification failed")
	// ErrProviderUnknown is returned when no verifier is registered for the
	// requested provider kind.
	ErrProviderUnknown = errors.New("unknown auth provider")
	// ErrEmailSendFailed is returned when OTP dispatch itself fails after a
	// challenge was issued.
	ErrEmailSendFailed = errors.New("verification email dispatch failed")
	// ErrStoreUnavailable is the infrastructure catch-all for Redis or
	// identity-store failures. Internal detail is wrapped, never surfaced.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned when a required collaborator was not
	// wired before use.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserNotFound is the sentinel [UserStore] implementations return for
	// a missing identity. The engine never surfaces it to callers; it maps
	// to the uniform error of whichever flow hit it.
	ErrUserNotFound = errors.New("user not found")
)
