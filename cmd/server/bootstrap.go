package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/api"
	"github.com/charlesng35/estateportal/internal/app"
	"github.com/charlesng35/estateportal/internal/app/maintenance"
	iauth "github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/cache"
	"github.com/charlesng35/estateportal/internal/database"
	"github.com/charlesng35/estateportal/internal/middleware"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Store       repository.Store
	Redis       *redis.Client
	Cache       cache.Store
	Sessions    *iauth.SessionService
	Credentials providers.CredentialStore
	Cleaner     *maintenance.Cleaner
	RateStore   middleware.RateStore
	Router      *gin.Engine
}

// bootstrapRuntime initialises the database, cache, credential store and router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	gormStore, err := repository.NewGormStore(stack.DB)
	if err != nil {
		return nil, err
	}
	stack.Store = gormStore

	dbCache := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbCache
	if cfg.Cache.Redis.Enabled {
		client, redisErr := cache.Connect(ctx, cfg.Cache.RedisClientConfig())
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(redisErr))
		} else {
			stack.Redis = client
			stack.Cache = cache.NewRedisStore(client, cfg.Cache.Redis.Prefix)
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	// Hosted stores issue their own tokens and may run without a local secret.
	var jwtSvc *iauth.JWTService
	if cfg.Auth.JWT.Secret != "" {
		jwtSvc, err = iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise jwt service: %w", err)
		}

		sessionCfg := cfg.Auth.SessionServiceConfig()
		sessionCfg.Cache = iauth.NewSessionCache(stack.Cache)
		stack.Sessions, err = iauth.NewSessionService(stack.DB, jwtSvc, sessionCfg)
		if err != nil {
			return nil, fmt.Errorf("initialise session service: %w", err)
		}
	}

	stack.Credentials, err = providers.DefaultRegistry().Build(ctx, cfg.Auth.CredentialStoreConfig(), providers.Dependencies{
		DB:       stack.DB,
		JWT:      jwtSvc,
		Sessions: stack.Sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise credential store: %w", err)
	}

	var mailer mail.Mailer
	if cfg.Email.SMTP.Enabled {
		mailer, err = mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
	}

	stack.RateStore = middleware.NewCacheRateStore(stack.Cache)

	router, svc, err := api.Build(cfg, api.Dependencies{
		Store:       stack.Store,
		Credentials: stack.Credentials,
		Cache:       stack.Cache,
		RateStore:   stack.RateStore,
		Mailer:      mailer,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}
	stack.Router = router

	stack.Cleaner = maintenance.NewCleaner(stack.Store,
		maintenance.WithAccessLog(svc.AccessLogs),
		maintenance.WithSessions(stack.Sessions),
		maintenance.WithCachePurger(dbCache),
		maintenance.WithAnomalyGrace(cfg.Maintenance.AnomalyGrace),
		maintenance.WithInviteSchedule(cfg.Maintenance.InviteSchedule),
		maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule),
		maintenance.WithAnomalySchedule(cfg.Maintenance.AnomalySchedule),
	)
	if cfg.Maintenance.Enabled {
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		// Stop's context is cancelled once running jobs finish.
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, cfg.Database.SeedOptions()); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", strings.ToLower(dbCfg.Driver)))
	return db, nil
}
