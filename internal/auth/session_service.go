package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/pkg/crypto"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/metrics"
)

// DefaultRefreshTokenTTL is the fallback refresh token lifetime.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// SessionConfig tunes a SessionService.
type SessionConfig struct {
	RefreshTokenTTL time.Duration
	RefreshLength   int
	Clock           func() time.Time
	Cache           SessionCache
}

// SessionMetadata describes the client a session is issued to.
type SessionMetadata struct {
	Email     string
	IPAddress string
	UserAgent string
}

// TokenPair is an access token and its rotating refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

var (
	ErrSessionNotFound     = errors.New("session: not found")
	ErrSessionRevoked      = errors.New("session: revoked")
	ErrSessionExpired      = errors.New("session: expired")
	ErrSessionInvalidToken = errors.New("session: invalid token")
)

// SessionService issues, rotates and revokes refresh sessions. Only the
// SHA-256 digest of a refresh token is persisted.
type SessionService struct {
	db         *gorm.DB
	jwt        *JWTService
	refreshTTL time.Duration
	tokenLen   int
	now        func() time.Time
	cache      SessionCache
}

func NewSessionService(db *gorm.DB, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	ttl := cfg.RefreshTokenTTL
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	length := cfg.RefreshLength
	if length <= 0 {
		length = 48
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:         db,
		jwt:        jwtService,
		refreshTTL: ttl,
		tokenLen:   length,
		now:        func() time.Time { return clock().UTC() },
		cache:      cfg.Cache,
	}, nil
}

// CreateSession stores a new session for userID and returns its tokens.
func (s *SessionService) CreateSession(ctx context.Context, userID string, meta SessionMetadata) (TokenPair, *models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return TokenPair{}, nil, errors.New("session service: user id is required")
	}

	refreshToken, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate refresh token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		UserID:       userID,
		RefreshToken: crypto.Digest(refreshToken),
		IPAddress:    strings.TrimSpace(meta.IPAddress),
		UserAgent:    strings.TrimSpace(meta.UserAgent),
		ExpiresAt:    now.Add(s.refreshTTL),
		LastUsedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: create session: %w", err)
	}
	metrics.ActiveSessions.Inc()

	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		UserID:    userID,
		Email:     strings.ToLower(strings.TrimSpace(meta.Email)),
		SessionID: session.ID,
	})
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate access token: %w", err)
	}

	s.cacheSet(ctx, session)

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.TTL(),
	}, session, nil
}

// RefreshSession rotates the refresh token and issues a new access token.
// The previous refresh token stops working immediately.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string) (TokenPair, *models.Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, nil, ErrSessionInvalidToken
	}
	digest := crypto.Digest(refreshToken)

	session, err := s.lookup(ctx, digest)
	if err != nil {
		return TokenPair{}, nil, err
	}

	now := s.now()
	if session.RevokedAt != nil {
		return TokenPair{}, nil, ErrSessionRevoked
	}
	if session.ExpiresAt.Before(now) {
		return TokenPair{}, nil, ErrSessionExpired
	}

	newRefresh, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate refresh token: %w", err)
	}
	newDigest := crypto.Digest(newRefresh)
	expiresAt := now.Add(s.refreshTTL)

	// Guarding on the old digest makes concurrent refreshes of one token rotate once.
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND refresh_token = ? AND revoked_at IS NULL", session.ID, digest).
		Updates(map[string]any{
			"refresh_token": newDigest,
			"expires_at":    expiresAt,
			"last_used_at":  now,
		})
	if res.Error != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: update session: %w", res.Error)
	}
	s.cacheDelete(ctx, digest)
	if res.RowsAffected == 0 {
		return TokenPair{}, nil, ErrSessionNotFound
	}

	session.RefreshToken = newDigest
	session.ExpiresAt = expiresAt
	session.LastUsedAt = now

	var email string
	var user models.IdentityUser
	if err := s.db.WithContext(ctx).Select("email").Take(&user, "id = ?", session.UserID).Error; err == nil {
		email = user.Email
	}

	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		UserID:    session.UserID,
		Email:     email,
		SessionID: session.ID,
	})
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate access token: %w", err)
	}

	s.cacheSet(ctx, session)

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    s.jwt.TTL(),
	}, session, nil
}

// ValidateSession reports whether the session referenced by an access token
// is still usable.
func (s *SessionService) ValidateSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidToken
	}
	var session models.Session
	err := s.db.WithContext(ctx).Take(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("session service: find session: %w", err)
	}
	if session.RevokedAt != nil {
		return ErrSessionRevoked
	}
	if session.ExpiresAt.Before(s.now()) {
		return ErrSessionExpired
	}
	return nil
}

// RevokeUserSessions revokes every active session of a user.
func (s *SessionService) RevokeUserSessions(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrSessionInvalidToken
	}

	var digests []string
	if s.cache != nil {
		if err := s.db.WithContext(ctx).Model(&models.Session{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Pluck("refresh_token", &digests).Error; err != nil {
			digests = nil
		}
	}

	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now())
	if res.Error != nil {
		return fmt.Errorf("session service: revoke sessions: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(res.RowsAffected))
	}

	for _, digest := range digests {
		s.cacheDelete(ctx, digest)
	}
	return nil
}

// CleanupExpired deletes expired and revoked sessions.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()

	var activeExpired int64
	if err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("expires_at < ? AND revoked_at IS NULL", now).
		Count(&activeExpired).Error; err != nil {
		return 0, fmt.Errorf("session service: count expired sessions: %w", err)
	}

	var digests []string
	if s.cache != nil {
		_ = s.db.WithContext(ctx).Model(&models.Session{}).
			Where("expires_at < ? OR revoked_at IS NOT NULL", now).
			Pluck("refresh_token", &digests).Error
	}

	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now).
		Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", res.Error)
	}

	for _, digest := range digests {
		s.cacheDelete(ctx, digest)
	}
	if activeExpired > 0 {
		metrics.ActiveSessions.Sub(float64(activeExpired))
	}
	return res.RowsAffected, nil
}

func (s *SessionService) lookup(ctx context.Context, digest string) (*models.Session, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, digest)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil && !errors.Is(err, errSessionCacheMiss) {
			logger.WithModule("auth.sessions").Debug("session cache read failed")
		}
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where("refresh_token = ?", digest).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}
	return &session, nil
}

func (s *SessionService) cacheSet(ctx context.Context, session *models.Session) {
	if s.cache == nil {
		return
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	// Cache failures are non-fatal.
	_ = s.cache.Set(ctx, session, ttl)
}

func (s *SessionService) cacheDelete(ctx context.Context, digest string) {
	if s.cache == nil || digest == "" {
		return
	}
	_ = s.cache.Delete(ctx, digest)
}
