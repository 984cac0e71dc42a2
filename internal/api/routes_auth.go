package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/handlers"
	"github.com/charlesng35/estateportal/internal/middleware"
)

type authRouteDeps struct {
	Handler  *handlers.AuthHandler
	Resolver middleware.ContextResolver
	Limiter  gin.HandlerFunc
}

func registerAuthRoutes(api *gin.RouterGroup, deps authRouteDeps) {
	auth := api.Group("/portal/auth")
	{
		auth.POST("/validate-code", deps.Limiter, deps.Handler.ValidateCode)
		auth.POST("/activate", deps.Limiter, deps.Handler.Activate)
		auth.POST("/login", deps.Limiter, deps.Handler.Login)
		auth.POST("/refresh", deps.Handler.Refresh)
	}

	// Pending and blocked accounts may still read their own status.
	api.GET("/portal/me", middleware.PortalSelfAuth(deps.Resolver), deps.Handler.Me)
}
