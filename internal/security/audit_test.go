package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/app"
	"github.com/charlesng35/estateportal/internal/auth/providers"
)

func checkByID(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %q not found", id)
	return Check{}
}

func TestAuditServiceRun(t *testing.T) {
	cfg := &app.Config{
		Server: app.ServerConfig{
			AdminKey:    "0123456789abcdef0123456789abcdef",
			CORSOrigins: []string{"https://portal.example.com"},
		},
		Auth: app.AuthConfig{
			JWT:     app.JWTSettings{Secret: "0123456789abcdef0123456789abcdef0123456789abcdef"},
			Session: app.SessionSettings{RefreshTTL: 720 * time.Hour, RefreshLength: 48},
		},
		Invites: app.InviteConfig{KDF: app.KDFConfig{Time: 2, Memory: 64 * 1024, Threads: 2, KeyLength: 32}},
		Email:   app.EmailConfig{SMTP: app.SMTPConfig{Enabled: true, UseTLS: true}},
	}

	svc := NewAuditService(cfg)
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run()
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 6)
	require.Equal(t, 6, result.Summary[string(StatusPass)])
}

func TestAuditServiceFlagsWeakSettings(t *testing.T) {
	cfg := &app.Config{
		Server: app.ServerConfig{CORSOrigins: []string{"*"}},
		Auth: app.AuthConfig{
			JWT:     app.JWTSettings{Secret: "short"},
			Session: app.SessionSettings{RefreshTTL: 90 * 24 * time.Hour},
		},
		Invites: app.InviteConfig{KDF: app.KDFConfig{Time: 1, Memory: 64, Threads: 1, KeyLength: 16}},
		Email:   app.EmailConfig{SMTP: app.SMTPConfig{Enabled: true}},
	}

	result := NewAuditService(cfg).Run()
	require.Equal(t, StatusFail, checkByID(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusWarn, checkByID(t, result, "admin_key_strength").Status)
	require.Equal(t, StatusWarn, checkByID(t, result, "session_refresh_ttl").Status)
	require.Equal(t, StatusWarn, checkByID(t, result, "invite_code_kdf").Status)
	require.Equal(t, StatusWarn, checkByID(t, result, "cors_origins").Status)
	require.Equal(t, StatusWarn, checkByID(t, result, "smtp_transport").Status)
	require.Equal(t, 1, result.Summary[string(StatusFail)])
}

func TestAuditServiceHostedStoreSkipsSecret(t *testing.T) {
	cfg := &app.Config{Auth: app.AuthConfig{Provider: providers.Config{Kind: providers.KindCognito}}}

	result := NewAuditService(cfg).Run()
	require.Equal(t, StatusPass, checkByID(t, result, "jwt_secret_strength").Status)
}

func TestAuditServiceWithoutConfig(t *testing.T) {
	result := NewAuditService(nil).Run()
	require.Equal(t, len(result.Checks), result.Summary[string(StatusWarn)])
}
