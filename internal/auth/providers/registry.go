package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/auth"
)

// Registered credential store kinds.
const (
	KindLocal   = "local"
	KindCognito = "cognito"
)

// ErrProviderExists is returned when a store kind is registered twice.
var ErrProviderExists = errors.New("credential registry: kind already registered")

// Config selects and configures the credential store.
type Config struct {
	Kind    string        `mapstructure:"kind"`
	Cognito CognitoConfig `mapstructure:"cognito"`
	// OIDC enables JWKS verification of bearer tokens when IssuerURL is set.
	OIDC OIDCConfig `mapstructure:"oidc"`
}

// Dependencies are the shared services a factory may need.
type Dependencies struct {
	DB       *gorm.DB
	JWT      *auth.JWTService
	Sessions *auth.SessionService
	Clock    func() time.Time
}

// Factory builds a credential store from configuration.
type Factory func(ctx context.Context, cfg Config, deps Dependencies) (CredentialStore, error)

// Registry maps store kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows the local and cognito stores.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(KindLocal, newLocalFromConfig)
	_ = r.Register(KindCognito, newCognitoFromConfig)
	return r
}

func (r *Registry) Register(kind string, factory Factory) error {
	kind = normaliseKind(kind)
	if kind == "" {
		return errors.New("credential registry: kind is required")
	}
	if factory == nil {
		return errors.New("credential registry: factory is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: %s", ErrProviderExists, kind)
	}
	r.factories[kind] = factory
	return nil
}

// Kinds lists the registered kinds in alphabetical order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Build instantiates the store named by cfg.Kind, defaulting to local.
func (r *Registry) Build(ctx context.Context, cfg Config, deps Dependencies) (CredentialStore, error) {
	kind := normaliseKind(cfg.Kind)
	if kind == "" {
		kind = KindLocal
	}

	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("credential registry: unknown kind %q", cfg.Kind)
	}
	return factory(ctx, cfg, deps)
}

func newLocalFromConfig(_ context.Context, _ Config, deps Dependencies) (CredentialStore, error) {
	return NewLocalStore(deps.DB, deps.JWT, deps.Sessions, LocalConfig{Clock: deps.Clock})
}

func newCognitoFromConfig(ctx context.Context, cfg Config, _ Dependencies) (CredentialStore, error) {
	var verifier TokenVerifier
	if strings.TrimSpace(cfg.OIDC.IssuerURL) != "" {
		v, err := NewOIDCVerifier(ctx, cfg.OIDC)
		if err != nil {
			return nil, err
		}
		verifier = v
	}
	return NewCognitoStore(ctx, cfg.Cognito, verifier)
}

func normaliseKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
