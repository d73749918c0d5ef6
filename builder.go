package authstack

import (
	"crypto/ed25519"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taskhive/authstack/jwt"
	"github.com/taskhive/authstack/password"
	"github.com/taskhive/authstack/session"
)

// Builder assembles an Engine. Collaborators are injected with the With
// methods; Build validates the configuration and fails fast on anything
// missing.
type Builder struct {
	cfg       Config
	cfgSet    bool
	rdb       redis.UniversalClient
	users     UserStore
	mailer    Mailer
	hasher    PasswordHasher
	sink      AuditSink
	verifiers map[ProviderKind]IdentityVerifier
}

// NewBuilder returns a Builder with default configuration.
func NewBuilder() *Builder {
	return &Builder{
		cfg:       defaultConfig(),
		verifiers: make(map[ProviderKind]IdentityVerifier),
	}
}

// WithConfig replaces the default configuration. Zero durations and counts
// are filled back in from the defaults before validation.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = mergeDefaults(cfg)
	b.cfgSet = true
	return b
}

// WithRedis sets the Redis client backing sessions, OTP challenges and rate
// windows.
func (b *Builder) WithRedis(rdb redis.UniversalClient) *Builder {
	b.rdb = rdb
	return b
}

// WithUserStore sets the identity store.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithMailer sets the outbound mail transport.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithPasswordHasher overrides the bundled argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink enables auditing into sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	b.cfg.Audit.Enabled = true
	return b
}

// WithIdentityVerifier registers the token verifier for a federated
// provider. Registering the same provider twice keeps the last verifier.
func (b *Builder) WithIdentityVerifier(provider ProviderKind, v IdentityVerifier) *Builder {
	b.verifiers[provider] = v
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.rdb == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrEngineNotReady)
	}
	if b.users == nil {
		return nil, fmt.Errorf("%w: user store required", ErrEngineNotReady)
	}
	if b.mailer == nil {
		return nil, fmt.Errorf("%w: mailer required", ErrEngineNotReady)
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineNotReady, err)
	}
	cfg := cloneConfig(b.cfg)

	tokens, err := jwt.NewManager(jwt.Config{
		Method:     cfg.JWT.SigningMethod,
		Secret:     cfg.JWT.Secret,
		PrivateKey: ed25519.PrivateKey(cfg.JWT.PrivateKey),
		PublicKey:  ed25519.PublicKey(cfg.JWT.PublicKey),
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		Leeway:     cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineNotReady, err)
	}

	hasher := b.hasher
	if hasher == nil {
		hasher = password.NewHasher(password.Params{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
	}

	e := &Engine{
		cfg:      cfg,
		users:    b.users,
		mailer:   b.mailer,
		creds:    credentialVerifier{hasher: hasher},
		tokens:   tokens,
		sessions: session.NewStore(b.rdb, cfg.Session.RedisPrefix, cfg.Session.RefreshTTL),
		otp: &otpChallengeStore{
			rdb:         b.rdb,
			ttl:         cfg.OTP.ChallengeTTL,
			maxAttempts: cfg.OTP.MaxAttempts,
		},
		otpLimiter: &fixedWindowLimiter{
			rdb:    b.rdb,
			prefix: "rl:otp",
			limit:  cfg.RateLimit.MaxOTPRequests,
			window: cfg.RateLimit.OTPWindow,
		},
		verifiers: make(map[ProviderKind]IdentityVerifier, len(b.verifiers)),
	}
	for k, v := range b.verifiers {
		e.verifiers[k] = v
	}

	if cfg.RateLimit.EnableLoginThrottle {
		e.loginLimiter = &fixedWindowLimiter{
			rdb:    b.rdb,
			prefix: "rl:login",
			limit:  cfg.RateLimit.MaxLoginAttempts,
			window: cfg.RateLimit.LoginWindow,
		}
	}

	if cfg.Metrics.Enabled {
		e.metrics = newMetrics()
	}

	// A registered sink enables auditing even if a later WithConfig call
	// replaced the config wholesale.
	if cfg.Audit.Enabled || b.sink != nil {
		sink := b.sink
		if sink == nil {
			sink = NoOpSink{}
		}
		onDrop := func() { e.metrics.Inc(MetricAuditDropped) }
		e.audit = newAuditDispatcher(sink, cfg.Audit.BufferSize, cfg.Audit.DropIfFull, onDrop)
	}

	return e, nil
}

// mergeDefaults fills zero values of cfg from defaultConfig.
func mergeDefaults(cfg Config) Config {
	d := defaultConfig()
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = d.JWT.AccessTTL
	}
	if cfg.JWT.SigningMethod == "" {
		cfg.JWT.SigningMethod = d.JWT.SigningMethod
	}
	if cfg.JWT.Leeway == 0 {
		cfg.JWT.Leeway = d.JWT.Leeway
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = d.Session.RedisPrefix
	}
	if cfg.Session.RefreshTTL == 0 {
		cfg.Session.RefreshTTL = d.Session.RefreshTTL
	}
	if cfg.OTP.Digits == 0 {
		cfg.OTP.Digits = d.OTP.Digits
	}
	if cfg.OTP.ChallengeTTL == 0 {
		cfg.OTP.ChallengeTTL = d.OTP.ChallengeTTL
	}
	if cfg.OTP.MaxAttempts == 0 {
		cfg.OTP.MaxAttempts = d.OTP.MaxAttempts
	}
	if cfg.RateLimit.MaxOTPRequests == 0 {
		cfg.RateLimit.MaxOTPRequests = d.RateLimit.MaxOTPRequests
	}
	if cfg.RateLimit.OTPWindow == 0 {
		cfg.RateLimit.OTPWindow = d.RateLimit.OTPWindow
	}
	if cfg.RateLimit.MaxLoginAttempts == 0 {
		cfg.RateLimit.MaxLoginAttempts = d.RateLimit.MaxLoginAttempts
	}
	if cfg.RateLimit.LoginWindow == 0 {
		cfg.RateLimit.LoginWindow = d.RateLimit.LoginWindow
	}
	if cfg.Password.Memory == 0 {
		cfg.Password = d.Password
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = d.Audit.BufferSize
	}
	return cfg
}
