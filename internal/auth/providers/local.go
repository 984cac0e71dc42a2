package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/crypto"
)

// LocalConfig tunes the local credential store.
type LocalConfig struct {
	Clock func() time.Time
}

// LocalStore keeps identities in the portal database, hashing passwords with
// bcrypt and issuing JWT access tokens backed by refresh sessions.
type LocalStore struct {
	db       *gorm.DB
	jwt      *auth.JWTService
	sessions *auth.SessionService
	clock    func() time.Time
}

func NewLocalStore(db *gorm.DB, jwtService *auth.JWTService, sessions *auth.SessionService, cfg LocalConfig) (*LocalStore, error) {
	if db == nil {
		return nil, errors.New("local store: db is required")
	}
	if jwtService == nil || sessions == nil {
		return nil, errors.New("local store: jwt and session services are required")
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}
	return &LocalStore{db: db, jwt: jwtService, sessions: sessions, clock: clock}, nil
}

func (s *LocalStore) Name() string { return KindLocal }

func (s *LocalStore) CreateUser(ctx context.Context, input CreateUserInput) (*Identity, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, errors.New("local store: email is required")
	}
	if len(input.Password) < crypto.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("local store: hash password: %w", err)
	}

	user := &models.IdentityUser{Email: email, PasswordHash: hashed}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("local store: create user: %w", err)
	}

	return &Identity{UserID: user.ID, Email: email, FullName: strings.TrimSpace(input.FullName)}, nil
}

func (s *LocalStore) DeleteUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", userID).Delete(&models.IdentityUser{}).Error
	})
}

func (s *LocalStore) Login(ctx context.Context, input LoginInput) (*Tokens, *Identity, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	var user models.IdentityUser
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("local store: query user: %w", err)
	}
	if user.Disabled {
		return nil, nil, ErrUserDisabled
	}
	if !crypto.VerifyPassword(user.PasswordHash, input.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	now := s.clock().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, nil, fmt.Errorf("local store: update user: %w", err)
	}

	pair, _, err := s.sessions.CreateSession(ctx, user.ID, auth.SessionMetadata{
		Email:     user.Email,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return nil, nil, err
	}

	return tokensFromPair(pair), &Identity{UserID: user.ID, Email: user.Email}, nil
}

func (s *LocalStore) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	pair, _, err := s.sessions.RefreshSession(ctx, refreshToken)
	switch {
	case errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrSessionRevoked),
		errors.Is(err, auth.ErrSessionInvalidToken):
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case err != nil:
		return nil, err
	}
	return tokensFromPair(pair), nil
}

// VerifyToken validates the signature and expiry of an access token and
// checks that its session is still live and the identity enabled.
func (s *LocalStore) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.SessionID != "" {
		if err := s.sessions.ValidateSession(ctx, claims.SessionID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	var user models.IdentityUser
	err = s.db.WithContext(ctx).Take(&user, "id = ?", claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("local store: query user: %w", err)
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}
	identity := &Identity{UserID: user.ID, Email: user.Email}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func tokensFromPair(pair auth.TokenPair) *Tokens {
	return &Tokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	}
}
