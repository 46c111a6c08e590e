package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity holds the attributes embedded in a token
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetIssuer() string
	GetAuthScheme() string
	GetContextKey() string
}

// Users is the credential store the authentication flow depends on.
// Implementations report a missing record with a not found category
// error and a unique key violation with a conflict category error.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
}

// TokenService mints and verifies identity tokens
type TokenService interface {
	Issue(identity Identity) (*IssuedToken, error)
	Verify(token string) (*JWTClaims, error)
}

// IssuedToken is a signed token and its expiry
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthResult is returned by register and login
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      PublicUser `json:"user"`
}
