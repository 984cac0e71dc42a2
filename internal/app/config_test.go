package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/pkg/crypto"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "file-admin-key", cfg.Server.AdminKey)
	require.Equal(t, []string{"https://portal.example.com", "https://agents.example.com"}, cfg.Server.CORSOrigins)
	require.Equal(t, 5, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 6543, cfg.Database.Postgres.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "portal-test:", cfg.Cache.Redis.Prefix)
	require.Equal(t, 90*time.Second, cfg.Cache.TokenTTL())

	require.Equal(t, "cognito", cfg.Auth.Provider.Kind)
	require.Equal(t, "eu-west-1_AbCdEf", cfg.Auth.Provider.Cognito.UserPoolID)
	require.True(t, cfg.Auth.Provider.OIDC.SkipClientIDCheck)
	require.Equal(t, 10*time.Second, cfg.Auth.Provider.OIDC.Timeout)
	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 1440*time.Hour, cfg.Auth.Session.RefreshTTL)
	require.Equal(t, 64, cfg.Auth.Session.RefreshLength)

	require.Equal(t, crypto.Argon2Parameters{Time: 2, Memory: 32768, Threads: 2, KeyLength: 32}, cfg.Invites.KDFParams())

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 5m", cfg.Maintenance.InviteSchedule)
	require.Equal(t, "@hourly", cfg.Maintenance.SessionSchedule)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORTAL_SERVER_ADMIN_KEY", "env-admin-key")
	t.Setenv("PORTAL_SERVER_PORT", "7070")
	t.Setenv("PORTAL_AUTH_PROVIDER_KIND", "local")

	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)
	require.Equal(t, "env-admin-key", cfg.Server.AdminKey)
	require.Equal(t, 7070, cfg.Server.Port)
	require.True(t, cfg.Auth.UsesLocalStore())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Empty(t, cfg.Server.AdminKey)
	require.Equal(t, 20, cfg.Server.RateLimit.Requests)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, time.Minute, cfg.Cache.TokenTTL())
	require.True(t, cfg.Auth.UsesLocalStore())
	require.Equal(t, crypto.DefaultArgon2Params(), cfg.Invites.KDFParams())
	require.True(t, cfg.Maintenance.Enabled)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		Provider: providers.Config{Kind: " Cognito ", Cognito: providers.CognitoConfig{Region: " eu-west-1 "}},
		JWT: JWTSettings{
			Secret: "secret",
			Issuer: "issuer",
			TTL:    30 * time.Minute,
		},
		Session: SessionSettings{
			RefreshTTL:    10 * time.Hour,
			RefreshLength: 32,
		},
	}

	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())

	require.Equal(t, auth.SessionConfig{
		RefreshTokenTTL: 10 * time.Hour,
		RefreshLength:   32,
	}, cfg.SessionServiceConfig())

	store := cfg.CredentialStoreConfig()
	require.Equal(t, providers.KindCognito, store.Kind)
	require.Equal(t, "eu-west-1", store.Cognito.Region)
	require.False(t, cfg.UsesLocalStore())
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig

	require.Equal(t, auth.DefaultAccessTokenTTL, cfg.JWTServiceConfig().AccessTokenTTL)

	sessionCfg := cfg.SessionServiceConfig()
	require.Equal(t, auth.DefaultRefreshTokenTTL, sessionCfg.RefreshTokenTTL)
	require.Equal(t, defaultRefreshLength, sessionCfg.RefreshLength)

	require.Equal(t, providers.KindLocal, cfg.CredentialStoreConfig().Kind)
}

func TestDatabaseConfigAdapter(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: " PostgreSQL ",
		Postgres: DBAuthConfig{
			Host:     " db.internal ",
			Port:     5432,
			Database: "portal",
			Username: "svc",
			Password: "pw",
		},
		DemoOrganizationID: " org-1 ",
	}

	conn := cfg.ConnectionConfig()
	require.Equal(t, "postgres", conn.Driver)
	require.Equal(t, "db.internal", conn.Host)
	require.Equal(t, "portal", conn.Name)
	require.Equal(t, "svc", conn.User)
	require.Equal(t, "org-1", cfg.SeedOptions().DemoOrganizationID)

	require.Equal(t, "sqlite", DatabaseConfig{}.ConnectionConfig().Driver)
	require.Equal(t, "memory", DatabaseConfig{Driver: "memory"}.ConnectionConfig().Driver)
}

func TestInviteKDFFallsBackWhenInvalid(t *testing.T) {
	cfg := InviteConfig{KDF: KDFConfig{Time: 3, Memory: 1024, Threads: 1, KeyLength: 20}}
	require.Equal(t, crypto.DefaultArgon2Params(), cfg.KDFParams())
}

func TestEmailConfigAdapter(t *testing.T) {
	cfg := EmailConfig{
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "user", settings.Username)
	require.Equal(t, "pass", settings.Password)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.True(t, settings.UseTLS)
	require.Equal(t, 10*time.Second, settings.Timeout)

	cfg.SMTP.From = "  "
	cfg.SMTP.Username = " mailer@example.com "
	settings = cfg.SMTPSettings()
	require.Equal(t, "mailer@example.com", settings.From)
	require.Equal(t, "mailer@example.com", settings.Username)
}

func TestCacheConfigAdapter(t *testing.T) {
	cfg := CacheConfig{Redis: RedisCacheConfig{Address: " redis:6379 ", Prefix: " p: ", DB: 2}}
	redisCfg := cfg.RedisClientConfig()
	require.Equal(t, "redis:6379", redisCfg.Address)
	require.Equal(t, "p:", redisCfg.Prefix)
	require.Equal(t, 2, redisCfg.DB)
}
