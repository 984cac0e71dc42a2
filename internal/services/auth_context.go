package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/cache"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/crypto"
	apperrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/metrics"
)

const (
	tokenCachePrefix     = "portal:token:"
	defaultTokenCacheTTL = time.Minute
)

// AuthContext is the authenticated caller of a portal request.
type AuthContext struct {
	ExternalUserID string
	OrganizationID string
	Email          string
	Account        *models.PortalAccount
}

// ResolveOptions narrows account resolution.
type ResolveOptions struct {
	OrganizationID string
	AllowInactive  bool
}

// ResolverOption customises AuthContextResolver behaviour.
type ResolverOption func(*AuthContextResolver)

// WithTokenCache caches successful token verifications for ttl, capped at the
// token's own remaining lifetime. Account status is always read from the
// store, so a cached token never outlives an account suspension.
func WithTokenCache(store cache.Store, ttl time.Duration) ResolverOption {
	return func(r *AuthContextResolver) {
		r.cache = store
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithResolverClock overrides the clock used for token expiry checks.
func WithResolverClock(clock func() time.Time) ResolverOption {
	return func(r *AuthContextResolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// AuthContextResolver maps a bearer token to a portal account.
type AuthContextResolver struct {
	accounts repository.AccountRepository
	verifier providers.TokenVerifier
	cache    cache.Store
	cacheTTL time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewAuthContextResolver constructs an AuthContextResolver.
func NewAuthContextResolver(accounts repository.AccountRepository, verifier providers.TokenVerifier, opts ...ResolverOption) (*AuthContextResolver, error) {
	if accounts == nil {
		return nil, errors.New("auth context: account repository is required")
	}
	if verifier == nil {
		return nil, errors.New("auth context: token verifier is required")
	}

	resolver := &AuthContextResolver{
		accounts: accounts,
		verifier: verifier,
		cacheTTL: defaultTokenCacheTTL,
		now:      time.Now,
		log:      logger.WithModule("portal.auth"),
	}
	for _, opt := range opts {
		opt(resolver)
	}
	return resolver, nil
}

// Resolve verifies token and selects the caller's account. Among several
// accounts the oldest active one wins; inactive accounts are rejected unless
// opts.AllowInactive is set.
func (r *AuthContextResolver) Resolve(ctx context.Context, token string, opts ResolveOptions) (*AuthContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrAuthTokenRequired
	}

	identity, err := r.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	accounts, err := r.accounts.ListAccountsByExternalUser(ctx, identity.UserID, strings.TrimSpace(opts.OrganizationID))
	if err != nil {
		return nil, dbError("account_lookup", err)
	}
	account, err := selectAccount(accounts, opts.AllowInactive)
	if err != nil {
		return nil, err
	}

	email := account.Email
	if email == "" {
		email = identity.Email
	}
	return &AuthContext{
		ExternalUserID: identity.UserID,
		OrganizationID: account.OrganizationID,
		Email:          email,
		Account:        account,
	}, nil
}

type cachedIdentity struct {
	UserID    string    `json:"uid"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

func (r *AuthContextResolver) verify(ctx context.Context, token string) (*providers.Identity, error) {
	key := tokenCachePrefix + crypto.Digest(token)
	if r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, key); err == nil && ok {
			var cached cachedIdentity
			if json.Unmarshal(raw, &cached) == nil && cached.UserID != "" && r.unexpired(cached.ExpiresAt) {
				return &providers.Identity{UserID: cached.UserID, Email: cached.Email, ExpiresAt: cached.ExpiresAt}, nil
			}
		} else if err != nil {
			r.log.Debug("token cache read failed", zap.Error(err))
		}
	}

	identity, err := r.verifier.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, providers.ErrInvalidToken) || errors.Is(err, providers.ErrUserDisabled) {
			metrics.AuthAttempts.WithLabelValues("invalid_token").Inc()
			return nil, ErrInvalidAuthToken
		}
		return nil, apperrors.Upstream("auth_verify_failed", err)
	}
	if identity == nil || identity.UserID == "" {
		metrics.AuthAttempts.WithLabelValues("invalid_token").Inc()
		return nil, ErrInvalidAuthToken
	}

	if ttl := r.cacheTTLFor(identity); r.cache != nil && ttl > 0 {
		raw, _ := json.Marshal(cachedIdentity{UserID: identity.UserID, Email: identity.Email, ExpiresAt: identity.ExpiresAt})
		if err := r.cache.Set(ctx, key, raw, ttl); err != nil {
			r.log.Debug("token cache write failed", zap.Error(err))
		}
	}
	return identity, nil
}

func (r *AuthContextResolver) cacheTTLFor(identity *providers.Identity) time.Duration {
	ttl := r.cacheTTL
	if identity.ExpiresAt.IsZero() {
		return ttl
	}
	if remaining := identity.ExpiresAt.Sub(r.now()); remaining < ttl {
		return remaining
	}
	return ttl
}

func (r *AuthContextResolver) unexpired(expiresAt time.Time) bool {
	return expiresAt.IsZero() || r.now().Before(expiresAt)
}

func selectAccount(accounts []models.PortalAccount, allowInactive bool) (*models.PortalAccount, error) {
	if len(accounts) == 0 {
		return nil, ErrAccountNotFound
	}
	for i := range accounts {
		if accounts[i].Status == models.AccountStatusActive {
			return &accounts[i], nil
		}
	}
	if allowInactive {
		return &accounts[0], nil
	}
	return nil, ErrAccountNotActive
}
