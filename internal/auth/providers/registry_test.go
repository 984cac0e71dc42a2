package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/database/testutil"
)

func TestRegistryRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	factory := func(context.Context, Config, Dependencies) (CredentialStore, error) { return nil, nil }

	require.NoError(t, reg.Register("Custom", factory))
	err := reg.Register("custom", factory)
	require.True(t, errors.Is(err, ErrProviderExists))
	require.Error(t, reg.Register(" ", factory))
	require.Equal(t, []string{"custom"}, reg.Kinds())
}

func TestDefaultRegistryBuildsLocalStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "registry"})
	require.NoError(t, err)
	sessions, err := auth.NewSessionService(db, jwtService, auth.SessionConfig{})
	require.NoError(t, err)

	reg := DefaultRegistry()
	require.Equal(t, []string{"cognito", "local"}, reg.Kinds())

	store, err := reg.Build(context.Background(), Config{}, Dependencies{DB: db, JWT: jwtService, Sessions: sessions})
	require.NoError(t, err)
	require.Equal(t, "local", store.Name())

	_, err = reg.Build(context.Background(), Config{Kind: "ldap"}, Dependencies{})
	require.Error(t, err)
}
