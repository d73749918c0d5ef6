package authstack

import (
	"context"
	"time"
)

// Role is the coarse authorization level carried in access-token claims.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ProviderKind identifies how an identity authenticates: local password or a
// federated OAuth2 provider.
type ProviderKind string

const (
	ProviderLocal    ProviderKind = "LOCAL"
	ProviderGoogle   ProviderKind = "GOOGLE"
	ProviderFacebook ProviderKind = "FACEBOOK"
)

// User is the identity record exchanged with the host application's
// [UserStore]. ID is the storage key; PublicID is the opaque identifier safe
// to expose outside the system.
//
// Invariants the engine relies on: Email, when present, is unique;
// (Provider, ProviderID) is unique; a user never lacks both PasswordHash and
// ProviderID.
type User struct {
	ID            int64
	PublicID      string
	Email         string
	PasswordHash  string
	FullName      string
	Role          Role
	Provider      ProviderKind
	ProviderID    string
	EmailVerified bool
	Active        bool
	LastLoginAt   time.Time
}

// UserStore is the identity repository contract the host application must
// implement. Lookups return [ErrUserNotFound] (possibly wrapped) when no
// identity matches; any other error is treated as infrastructure failure.
//
// Save is an upsert: it persists new identities, assigning ID in place, and
// updates existing ones.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPublicID(ctx context.Context, publicID string) (*User, error)
	FindByProviderIdentity(ctx context.Context, kind ProviderKind, providerID string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user *User) error
}

// Mailer delivers verification and welcome emails. The engine treats delivery
// as fire-and-forget: welcome failures are logged only, OTP dispatch failures
// surface as [ErrEmailSendFailed].
type Mailer interface {
	SendOTPCode(ctx context.Context, email, code string) error
	SendWelcome(ctx context.Context, email, name string) error
}

// FederatedIdentity is the normalized record an [IdentityVerifier] extracts
// from a provider token. Email is empty when the provider withheld it.
type FederatedIdentity struct {
	Provider      ProviderKind
	ProviderID    string
	Email         string
	FullName      string
	EmailVerified bool
}

// IdentityVerifier validates a raw provider token against the upstream
// provider and returns the normalized identity. Implementations live in the
// host application; the engine only consumes the result.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*FederatedIdentity, error)
}

// PasswordHasher is the one-way hashing collaborator. The bundled argon2id
// hasher in package password satisfies it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encodedHash string) (bool, error)
}

// PublicUser is the externally safe projection of a [User] returned inside
// an [AuthBundle].
type PublicUser struct {
	PublicID      string       `json:"publicId"`
	Email         string       `json:"email"`
	FullName      string       `json:"fullName"`
	Role          Role         `json:"role"`
	Provider      ProviderKind `json:"authProvider"`
	EmailVerified bool         `json:"emailVerified"`
}

// AuthBundle is the success result of login, refresh, and federated login:
// a signed access token, the opaque refresh-session token, and the public
// user view.
type AuthBundle struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	User         PublicUser
}

// AccessIdentity is returned by [Engine.Validate] for an accepted access
// token.
type AccessIdentity struct {
	UserID   int64
	PublicID string
	Email    string
	Role     Role
}

func publicView(u *User) PublicUser {
	return PublicUser{
		PublicID:      u.PublicID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
	}
}
