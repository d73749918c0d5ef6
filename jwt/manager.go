// Package jwt issues and parses the signed access tokens handed to clients.
package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned for any token that fails signature, structure
// or time validation. Callers never learn which check failed.
var ErrTokenInvalid = errors.New("jwt: token invalid")

// Claims is the access-token payload. Subject carries the numeric user ID,
// PID the stable public identifier exposed to clients.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	PID   string `json:"publicId"`
	jwtlib.RegisteredClaims
}

// Config selects the signing method and key material.
type Config struct {
	Method     string // "hs256" or "ed25519"
	Secret     []byte
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	Issuer     string
	AccessTTL  time.Duration
	Leeway     time.Duration
}

// Manager signs and validates access tokens. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	method jwtlib.SigningMethod
	parser *jwtlib.Parser
}

// NewManager validates key material against the selected method.
func NewManager(cfg Config) (*Manager, error) {
	var method jwtlib.SigningMethod
	switch cfg.Method {
	case "", "hs256":
		if len(cfg.Secret) == 0 {
			return nil, errors.New("jwt: hs256 requires a secret")
		}
		method = jwtlib.SigningMethodHS256
	case "ed25519":
		if len(cfg.PrivateKey) != ed25519.PrivateKeySize || len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("jwt: ed25519 key size mismatch")
		}
		method = jwtlib.SigningMethodEdDSA
	default:
		return nil, fmt.Errorf("jwt: unsupported method %q", cfg.Method)
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{method.Alg()}),
		jwtlib.WithLeeway(cfg.Leeway),
		jwtlib.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	return &Manager{cfg: cfg, method: method, parser: jwtlib.NewParser(opts...)}, nil
}

// CreateAccess signs an access token for the given identity.
func (m *Manager) CreateAccess(userID int64, publicID, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		PID:   publicID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(m.cfg.AccessTTL)),
		},
	}

	tok := jwtlib.NewWithClaims(m.method, claims)
	switch m.method {
	case jwtlib.SigningMethodEdDSA:
		return tok.SignedString(m.cfg.PrivateKey)
	default:
		return tok.SignedString(m.cfg.Secret)
	}
}

// ParseAccess validates raw and returns its claims.
func (m *Manager) ParseAccess(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := m.parser.ParseWithClaims(raw, claims, m.keyFunc)
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.PID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// UserID parses the numeric subject of validated claims.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

func (m *Manager) keyFunc(*jwtlib.Token) (any, error) {
	if m.method == jwtlib.SigningMethodEdDSA {
		return m.cfg.PublicKey, nil
	}
	return m.cfg.Secret, nil
}
