// Package providers contains the credential stores that own portal
// identities. The portal never stores passwords itself; it delegates identity
// creation, sign-in and token verification to a CredentialStore.
package providers

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned when an email/password pair is rejected.
	ErrInvalidCredentials = errors.New("credentials: invalid credentials")
	// ErrInvalidToken is returned when an access token cannot be verified.
	ErrInvalidToken = errors.New("credentials: invalid token")
	// ErrUserExists is returned when an identity with the email already exists.
	ErrUserExists = errors.New("credentials: user already exists")
	// ErrWeakPassword is returned when a password fails the store's policy.
	ErrWeakPassword = errors.New("credentials: password does not meet policy")
	// ErrUserDisabled is returned when the identity has been disabled.
	ErrUserDisabled = errors.New("credentials: user disabled")
	// ErrUnsupported is returned for operations a store cannot perform.
	ErrUnsupported = errors.New("credentials: operation not supported")
)

// Identity is a user known to a credential store.
type Identity struct {
	UserID   string
	Email    string
	FullName string
	// ExpiresAt is when the verified token stops being valid; zero when the
	// store cannot tell.
	ExpiresAt time.Time
}

// Tokens is the result of a successful sign-in or refresh.
type Tokens struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    time.Duration `json:"-"`
}

// CreateUserInput describes a new identity.
type CreateUserInput struct {
	Email    string
	Password string
	FullName string
}

// LoginInput carries sign-in credentials and client metadata.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// CredentialStore is the external identity service used by the portal.
type CredentialStore interface {
	TokenVerifier

	Name() string
	CreateUser(ctx context.Context, input CreateUserInput) (*Identity, error)
	// DeleteUser removes an identity. It compensates a failed activation.
	DeleteUser(ctx context.Context, userID string) error
	Login(ctx context.Context, input LoginInput) (*Tokens, *Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}
