package app

import (
	"strings"

	"github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/auth/providers"
)

const defaultRefreshLength = 48

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Session.RefreshLength
	if length <= 0 {
		length = defaultRefreshLength
	}

	return auth.SessionConfig{
		RefreshTokenTTL: ttl,
		RefreshLength:   length,
	}
}

// CredentialStoreConfig returns the provider registry configuration with the
// kind normalised. An empty kind selects the local store.
func (c AuthConfig) CredentialStoreConfig() providers.Config {
	cfg := c.Provider
	cfg.Kind = strings.ToLower(strings.TrimSpace(cfg.Kind))
	if cfg.Kind == "" {
		cfg.Kind = providers.KindLocal
	}
	cfg.Cognito.Region = strings.TrimSpace(cfg.Cognito.Region)
	cfg.Cognito.UserPoolID = strings.TrimSpace(cfg.Cognito.UserPoolID)
	cfg.Cognito.ClientID = strings.TrimSpace(cfg.Cognito.ClientID)
	cfg.OIDC.IssuerURL = strings.TrimSpace(cfg.OIDC.IssuerURL)
	return cfg
}

// UsesLocalStore reports whether identities live in the portal database.
func (c AuthConfig) UsesLocalStore() bool {
	return c.CredentialStoreConfig().Kind == providers.KindLocal
}
