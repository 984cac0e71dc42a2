package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/estateportal/internal/app"
	"github.com/charlesng35/estateportal/internal/handlers"
	"github.com/charlesng35/estateportal/internal/monitoring"
)

// registerHealthRoutes probes the store as a critical dependency and the
// cache as an optional one when it can be pinged.
func registerHealthRoutes(r *gin.Engine, cfg *app.Config, deps Dependencies) {
	checker := monitoring.NewChecker(0)
	checker.Register("database", true, deps.Store)
	if pinger, ok := deps.Cache.(monitoring.Pinger); ok {
		checker.Register("cache", false, pinger)
	}

	health := handlers.Health(checker)
	r.GET("/health", health)
	r.GET("/api/health", health)

	if !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
