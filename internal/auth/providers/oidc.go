package providers

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig configures JWKS verification of hosted identity provider tokens.
type OIDCConfig struct {
	IssuerURL string `mapstructure:"issuer_url"`
	ClientID  string `mapstructure:"client_id"`
	// SkipClientIDCheck accepts tokens without a matching audience. Cognito
	// access tokens carry client_id instead of aud.
	SkipClientIDCheck bool             `mapstructure:"skip_client_id_check"`
	Timeout           time.Duration    `mapstructure:"timeout"`
	HTTPClient        *http.Client     `mapstructure:"-"`
	Now               func() time.Time `mapstructure:"-"`
}

// OIDCVerifier verifies signed tokens against an issuer's published keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier runs issuer discovery and returns a verifier that follows
// the issuer's key rotation.
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if strings.TrimSpace(cfg.IssuerURL) == "" {
		return nil, errors.New("oidc verifier: issuer url is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" && !cfg.SkipClientIDCheck {
		return nil, errors.New("oidc verifier: client id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}
	discoveryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc verifier: discovery failed: %w", err)
	}

	return &OIDCVerifier{verifier: provider.Verifier(verifierConfig(cfg))}, nil
}

// NewStaticOIDCVerifier verifies tokens against pinned public keys.
func NewStaticOIDCVerifier(cfg OIDCConfig, keys ...crypto.PublicKey) (*OIDCVerifier, error) {
	if strings.TrimSpace(cfg.IssuerURL) == "" {
		return nil, errors.New("oidc verifier: issuer url is required")
	}
	if len(keys) == 0 {
		return nil, errors.New("oidc verifier: at least one key is required")
	}
	set := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCVerifier{verifier: oidc.NewVerifier(cfg.IssuerURL, set, verifierConfig(cfg))}, nil
}

func verifierConfig(cfg OIDCConfig) *oidc.Config {
	return &oidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: cfg.SkipClientIDCheck,
		Now:               cfg.Now,
	}
}

func (v *OIDCVerifier) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}

	return &Identity{
		UserID:    idToken.Subject,
		Email:     strings.ToLower(stringValue(claims, "email")),
		FullName:  stringValue(claims, "name"),
		ExpiresAt: idToken.Expiry,
	}, nil
}

func stringValue(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
