package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/database/testutil"
	"github.com/charlesng35/estateportal/internal/models"
)

func newTestLocalStore(t *testing.T) (*LocalStore, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "local-secret", Issuer: "estateportal"})
	require.NoError(t, err)
	sessions, err := auth.NewSessionService(db, jwtService, auth.SessionConfig{})
	require.NoError(t, err)

	store, err := NewLocalStore(db, jwtService, sessions, LocalConfig{})
	require.NoError(t, err)
	return store, db
}

func TestLocalStoreCreateLoginVerify(t *testing.T) {
	store, db := newTestLocalStore(t)
	ctx := context.Background()

	identity, err := store.CreateUser(ctx, CreateUserInput{Email: " Agent@Example.com", Password: "password123", FullName: "Agent"})
	require.NoError(t, err)
	require.NotEmpty(t, identity.UserID)
	require.Equal(t, "agent@example.com", identity.Email)

	tokens, loggedIn, err := store.Login(ctx, LoginInput{Email: "AGENT@example.com", Password: "password123", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, identity.UserID, loggedIn.UserID)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.NotEmpty(t, tokens.RefreshToken)

	verified, err := store.VerifyToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, identity.UserID, verified.UserID)
	require.True(t, verified.ExpiresAt.After(time.Now()))

	var user models.IdentityUser
	require.NoError(t, db.Take(&user, "id = ?", identity.UserID).Error)
	require.NotNil(t, user.LastLoginAt)
}

func TestLocalStoreRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	store, _ := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, CreateUserInput{Email: "a@example.com", Password: "short"})
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = store.CreateUser(ctx, CreateUserInput{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, CreateUserInput{Email: "A@example.com", Password: "password123"})
	require.ErrorIs(t, err, ErrUserExists)
}

func TestLocalStoreLoginFailures(t *testing.T) {
	store, db := newTestLocalStore(t)
	ctx := context.Background()

	identity, err := store.CreateUser(ctx, CreateUserInput{Email: "b@example.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = store.Login(ctx, LoginInput{Email: "b@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = store.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, db.Model(&models.IdentityUser{}).Where("id = ?", identity.UserID).Update("disabled", true).Error)
	_, _, err = store.Login(ctx, LoginInput{Email: "b@example.com", Password: "password123"})
	require.ErrorIs(t, err, ErrUserDisabled)
}

func TestLocalStoreRefreshAndDelete(t *testing.T) {
	store, db := newTestLocalStore(t)
	ctx := context.Background()

	identity, err := store.CreateUser(ctx, CreateUserInput{Email: "c@example.com", Password: "password123"})
	require.NoError(t, err)
	tokens, _, err := store.Login(ctx, LoginInput{Email: "c@example.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := store.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	_, err = store.Refresh(ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, store.DeleteUser(ctx, identity.UserID))

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Where("user_id = ?", identity.UserID).Count(&count).Error)
	require.Zero(t, count)

	_, err = store.VerifyToken(ctx, refreshed.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalStoreVerifyRejectsGarbage(t *testing.T) {
	store, _ := newTestLocalStore(t)

	_, err := store.VerifyToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalStoreVerifyRejectsExpiredToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "s", AccessTokenTTL: time.Minute, Clock: clock})
	require.NoError(t, err)
	sessions, err := auth.NewSessionService(db, jwtService, auth.SessionConfig{Clock: clock})
	require.NoError(t, err)
	store, err := NewLocalStore(db, jwtService, sessions, LocalConfig{Clock: clock})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.CreateUser(ctx, CreateUserInput{Email: "d@example.com", Password: "password123"})
	require.NoError(t, err)
	tokens, _, err := store.Login(ctx, LoginInput{Email: "d@example.com", Password: "password123"})
	require.NoError(t, err)

	current = current.Add(5 * time.Minute)
	_, err = store.VerifyToken(ctx, tokens.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}
