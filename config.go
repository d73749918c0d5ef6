package authstack

import (
	"errors"
	"time"
)

// Config is the full engine configuration tree. Zero values are filled from
// [defaultConfig] by the [Builder]; Validate rejects combinations that would
// weaken the security posture.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	OAuth     OAuthConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token signing and validation.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte // hs256 signing key
	PrivateKey    []byte // ed25519
	PublicKey     []byte // ed25519
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh-session storage.
type SessionConfig struct {
	RedisPrefix string
	RefreshTTL  time.Duration
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls the email verification challenge state machine.
type OTPConfig struct {
	Digits       int
	ChallengeTTL time.Duration
	MaxAttempts  int
}

// RateLimitConfig tunes the fixed-window counters guarding OTP issuance and,
// optionally, login attempts.
type RateLimitConfig struct {
	MaxOTPRequests      int
	OTPWindow           time.Duration
	EnableLoginThrottle bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration
}

// OAuthConfig holds the federated-login reconciliation policy.
//
// AllowAccountLinking decides step three of the reconciliation table: whether
// a federated identity whose email matches an existing account may be
// attached to it. Disabled by default because an unverified provider claim
// must not take over a password account.
type OAuthConfig struct {
	AllowAccountLinking bool
}

// PasswordConfig feeds the bundled argon2id hasher.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "rs",
			RefreshTTL:  7 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			Digits:       6,
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  5,
		},
		RateLimit: RateLimitConfig{
			MaxOTPRequests:      5,
			OTPWindow:           15 * time.Minute,
			EnableLoginThrottle: false,
			MaxLoginAttempts:    10,
			LoginWindow:         time.Minute,
		},
		OAuth: OAuthConfig{
			AllowAccountLinking: false,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values that would produce an
// insecure or non-functional engine.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access ttl must be positive")
	}
	if c.JWT.AccessTTL > time.Hour {
		return errors.New("jwt access ttl must not exceed one hour")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.Secret) < 32 {
			return errors.New("hs256 secret must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires private and public keys")
		}
	default:
		return errors.New("unsupported jwt signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("jwt leeway out of range")
	}

	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix must not be empty")
	}
	if c.Session.RefreshTTL <= 0 {
		return errors.New("refresh session ttl must be positive")
	}

	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if c.OTP.ChallengeTTL <= 0 {
		return errors.New("otp challenge ttl must be positive")
	}
	if c.OTP.MaxAttempts < 1 {
		return errors.New("otp max attempts must be at least 1")
	}

	if c.RateLimit.MaxOTPRequests < 1 || c.RateLimit.OTPWindow <= 0 {
		return errors.New("otp rate limit window misconfigured")
	}
	if c.RateLimit.EnableLoginThrottle {
		if c.RateLimit.MaxLoginAttempts < 1 || c.RateLimit.LoginWindow <= 0 {
			return errors.New("login rate limit window misconfigured")
		}
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = append([]byte(nil), cfg.JWT.Secret...)
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	return out
}
