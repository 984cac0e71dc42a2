package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/app"
	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/cache"
	"github.com/charlesng35/estateportal/internal/handlers"
	"github.com/charlesng35/estateportal/internal/middleware"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/internal/services"
	"github.com/charlesng35/estateportal/pkg/mail"
)

// Dependencies are the long-lived collaborators the router wires into services.
type Dependencies struct {
	Store       repository.Store
	Credentials providers.CredentialStore
	// Cache backs the bearer token cache. Nil disables it.
	Cache cache.Store
	// RateStore counts requests on the public auth routes. Nil selects a
	// process-local store.
	RateStore middleware.RateStore
	Mailer    mail.Mailer
	// Clock overrides the invite clock, for tests.
	Clock func() time.Time
}

// Services are the portal services built by NewRouter. They are returned so
// background jobs can share them.
type Services struct {
	AccessLogs  *services.AccessLogService
	Invites     *services.InviteService
	Activation  *services.ActivationService
	Login       *services.LoginService
	Resolver    *services.AuthContextResolver
	Gate        *services.MembershipGate
	Leads       *services.LeadService
	Visits      *services.VisitService
	Commissions *services.CommissionService
	Admin       *services.AdminService
}

// NewRouter builds the Gin engine, wires middleware and registers the portal routes.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	engine, _, err := Build(cfg, deps)
	return engine, err
}

// Build is NewRouter that also returns the services it constructed.
func Build(cfg *app.Config, deps Dependencies) (*gin.Engine, *Services, error) {
	if cfg == nil {
		return nil, nil, errors.New("config must be provided")
	}
	if deps.Store == nil {
		return nil, nil, errors.New("portal store must be provided")
	}
	if deps.Credentials == nil {
		return nil, nil, errors.New("credential store must be provided")
	}

	svc, err := buildServices(cfg, deps)
	if err != nil {
		return nil, nil, err
	}

	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	registerHealthRoutes(r, cfg, deps)

	api := r.Group("/api")
	limiter := middleware.RateLimit(rateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)

	registerAuthRoutes(api, authRouteDeps{
		Handler:  handlers.NewAuthHandler(svc.Invites, svc.Activation, svc.Login, svc.Gate, deps.Credentials),
		Resolver: svc.Resolver,
		Limiter:  limiter,
	})

	portal := api.Group("/portal")
	portal.Use(middleware.PortalAuth(svc.Resolver))
	registerPortalRoutes(portal, portalRouteDeps{
		Projects:    handlers.NewProjectHandler(svc.Gate),
		Leads:       handlers.NewLeadHandler(svc.Leads, svc.Visits),
		Commissions: handlers.NewCommissionHandler(svc.Commissions),
	})

	admin := api.Group("/portal")
	admin.Use(middleware.AdminKey(strings.TrimSpace(cfg.Server.AdminKey)))
	registerAdminRoutes(admin, adminRouteDeps{
		Invites: handlers.NewInviteHandler(svc.Invites),
		Admin:   handlers.NewAdminHandler(svc.Admin, svc.AccessLogs),
	})

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, svc, nil
}

func buildServices(cfg *app.Config, deps Dependencies) (*Services, error) {
	store := deps.Store

	accessLogs, err := services.NewAccessLogService(store)
	if err != nil {
		return nil, err
	}

	inviteOpts := []services.InviteOption{
		services.WithInviteKDF(cfg.Invites.KDFParams()),
	}
	if deps.Clock != nil {
		inviteOpts = append(inviteOpts, services.WithInviteClock(deps.Clock))
	}
	if deps.Mailer != nil {
		inviteOpts = append(inviteOpts, services.WithInviteMailer(deps.Mailer, cfg.Invites.PortalURL))
	}
	invites, err := services.NewInviteService(store, accessLogs, inviteOpts...)
	if err != nil {
		return nil, err
	}

	activation, err := services.NewActivationService(store, invites, deps.Credentials, accessLogs)
	if err != nil {
		return nil, err
	}

	login, err := services.NewLoginService(store, deps.Credentials, accessLogs)
	if err != nil {
		return nil, err
	}

	var resolverOpts []services.ResolverOption
	if deps.Cache != nil {
		resolverOpts = append(resolverOpts, services.WithTokenCache(deps.Cache, cfg.Cache.TokenTTL()))
	}
	resolver, err := services.NewAuthContextResolver(store, deps.Credentials, resolverOpts...)
	if err != nil {
		return nil, err
	}

	gate, err := services.NewMembershipGate(store)
	if err != nil {
		return nil, err
	}

	leads, err := services.NewLeadService(store, gate, accessLogs)
	if err != nil {
		return nil, err
	}

	visits, err := services.NewVisitService(store, gate, accessLogs)
	if err != nil {
		return nil, err
	}

	commissions, err := services.NewCommissionService(store)
	if err != nil {
		return nil, err
	}

	admin, err := services.NewAdminService(store, accessLogs)
	if err != nil {
		return nil, err
	}

	return &Services{
		AccessLogs:  accessLogs,
		Invites:     invites,
		Activation:  activation,
		Login:       login,
		Resolver:    resolver,
		Gate:        gate,
		Leads:       leads,
		Visits:      visits,
		Commissions: commissions,
		Admin:       admin,
	}, nil
}
