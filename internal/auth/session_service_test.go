package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/cache"
	"github.com/charlesng35/estateportal/internal/database/testutil"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/pkg/crypto"
)

func TestCreateSessionStoresDigest(t *testing.T) {
	db, svc, clock := setupSessionService(t, false)
	user := createTestUser(t, db, "create@example.com")

	tokens, session, err := svc.CreateSession(context.Background(), user.ID, SessionMetadata{
		Email:     "Create@Example.com",
		IPAddress: "10.0.0.1 ",
		UserAgent: "unit-test",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.Equal(t, time.Hour, tokens.ExpiresIn)
	require.Equal(t, "10.0.0.1", session.IPAddress)

	var stored models.Session
	require.NoError(t, db.Take(&stored, "id = ?", session.ID).Error)
	require.Equal(t, crypto.Digest(tokens.RefreshToken), stored.RefreshToken)
	require.NotEqual(t, tokens.RefreshToken, stored.RefreshToken)
	require.True(t, stored.ExpiresAt.After(clock.Now()))
}

func TestRefreshSessionRotatesToken(t *testing.T) {
	for _, cached := range []bool{false, true} {
		db, svc, clock := setupSessionService(t, cached)
		user := createTestUser(t, db, "refresh@example.com")
		ctx := context.Background()

		tokens, session, err := svc.CreateSession(ctx, user.ID, SessionMetadata{})
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)

		rotated, updated, err := svc.RefreshSession(ctx, tokens.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
		require.Equal(t, session.ID, updated.ID)
		require.True(t, updated.LastUsedAt.Equal(clock.Now()))

		_, _, err = svc.RefreshSession(ctx, tokens.RefreshToken)
		require.ErrorIs(t, err, ErrSessionNotFound)

		_, _, err = svc.RefreshSession(ctx, rotated.RefreshToken)
		require.NoError(t, err)
	}
}

func TestRefreshSessionExpired(t *testing.T) {
	db, svc, clock := setupSessionService(t, false)
	user := createTestUser(t, db, "expired@example.com")
	ctx := context.Background()

	tokens, _, err := svc.CreateSession(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)

	_, _, err = svc.RefreshSession(ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, ErrSessionExpired)

	_, _, err = svc.RefreshSession(ctx, " ")
	require.ErrorIs(t, err, ErrSessionInvalidToken)
}

func TestRevokeUserSessionsPreventsRefresh(t *testing.T) {
	db, svc, _ := setupSessionService(t, false)
	user := createTestUser(t, db, "revoke@example.com")
	ctx := context.Background()

	tokens, session, err := svc.CreateSession(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, svc.ValidateSession(ctx, session.ID))

	require.NoError(t, svc.RevokeUserSessions(ctx, user.ID))

	_, _, err = svc.RefreshSession(ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
	require.ErrorIs(t, svc.ValidateSession(ctx, session.ID), ErrSessionRevoked)
}

func TestCleanupExpiredRemovesStaleSessions(t *testing.T) {
	db, svc, clock := setupSessionService(t, true)
	user := createTestUser(t, db, "cleanup@example.com")
	ctx := context.Background()

	_, _, err := svc.CreateSession(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)
	clock.Advance(3 * time.Hour)
	_, _, err = svc.CreateSession(ctx, user.ID, SessionMetadata{})
	require.NoError(t, err)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining int64
	require.NoError(t, db.Model(&models.Session{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}

func setupSessionService(t *testing.T, withCache bool) (*gorm.DB, *SessionService, *testClock) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &testClock{current: time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)}

	jwtService, err := NewJWTService(JWTConfig{
		Secret:         "session-secret",
		AccessTokenTTL: time.Hour,
		Clock:          clock.Now,
	})
	require.NoError(t, err)

	cfg := SessionConfig{
		RefreshTokenTTL: 2 * time.Hour,
		RefreshLength:   24,
		Clock:           clock.Now,
	}
	if withCache {
		store := cache.NewDatabaseStore(db)
		cfg.Cache = NewSessionCache(store)
	}

	svc, err := NewSessionService(db, jwtService, cfg)
	require.NoError(t, err)
	return db, svc, clock
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.IdentityUser {
	t.Helper()

	hashed, err := crypto.HashPassword("password123")
	require.NoError(t, err)

	user := &models.IdentityUser{Email: email, PasswordHash: hashed}
	require.NoError(t, db.Create(user).Error)
	return user
}

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
