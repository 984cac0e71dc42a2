package providers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestStaticOIDCVerifierAcceptsSignedToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := "https://issuer.example.com/pool"
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	verifier, err := NewStaticOIDCVerifier(OIDCConfig{
		IssuerURL: issuer,
		ClientID:  "portal",
		Now:       func() time.Time { return now },
	}, key.Public())
	require.NoError(t, err)

	token := signTestToken(t, key, jwt.MapClaims{
		"iss":   issuer,
		"aud":   "portal",
		"sub":   "user-42",
		"email": "Agent@Example.com",
		"name":  "Agent Smith",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	identity, err := verifier.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-42", identity.UserID)
	require.Equal(t, "agent@example.com", identity.Email)
	require.Equal(t, "Agent Smith", identity.FullName)
	require.True(t, identity.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestStaticOIDCVerifierRejectsWrongAudienceAndExpiry(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := "https://issuer.example.com/pool"
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	verifier, err := NewStaticOIDCVerifier(OIDCConfig{
		IssuerURL: issuer,
		ClientID:  "portal",
		Now:       func() time.Time { return now },
	}, key.Public())
	require.NoError(t, err)

	wrongAudience := signTestToken(t, key, jwt.MapClaims{
		"iss": issuer, "aud": "other", "sub": "u", "exp": now.Add(time.Hour).Unix(),
	})
	_, err = verifier.VerifyToken(context.Background(), wrongAudience)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := signTestToken(t, key, jwt.MapClaims{
		"iss": issuer, "aud": "portal", "sub": "u", "exp": now.Add(-time.Minute).Unix(),
	})
	_, err = verifier.VerifyToken(context.Background(), expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewStaticOIDCVerifier(OIDCConfig{IssuerURL: issuer})
	require.Error(t, err)
}

func TestNewOIDCVerifierRunsDiscovery(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"issuer":                 server.URL,
				"authorization_endpoint": server.URL + "/auth",
				"token_endpoint":         server.URL + "/token",
				"jwks_uri":               server.URL + "/jwks",
			})
		case "/jwks":
			_ = json.NewEncoder(w).Encode(map[string]any{"keys": []any{}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	verifier, err := NewOIDCVerifier(context.Background(), OIDCConfig{
		IssuerURL:         server.URL,
		SkipClientIDCheck: true,
		HTTPClient:        server.Client(),
	})
	require.NoError(t, err)
	require.NotNil(t, verifier)

	_, err = NewOIDCVerifier(context.Background(), OIDCConfig{IssuerURL: server.URL})
	require.EqualError(t, err, "oidc verifier: client id is required")
}
