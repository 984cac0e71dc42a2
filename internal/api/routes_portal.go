package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/handlers"
)

type portalRouteDeps struct {
	Projects    *handlers.ProjectHandler
	Leads       *handlers.LeadHandler
	Commissions *handlers.CommissionHandler
}

// registerPortalRoutes mounts the bearer-authenticated partner routes.
func registerPortalRoutes(portal *gin.RouterGroup, deps portalRouteDeps) {
	projects := portal.Group("/projects")
	{
		projects.GET("", deps.Projects.List)
		projects.GET("/:id", deps.Projects.Get)
		projects.POST("/:id/leads", deps.Leads.Submit)
	}

	leads := portal.Group("/leads")
	{
		leads.GET("", deps.Leads.List)
		leads.GET("/:id", deps.Leads.Get)
		leads.POST("/:id/visit-requests", deps.Leads.RequestVisit)
	}

	portal.PATCH("/visit-requests/:id", deps.Leads.PatchVisit)
	portal.GET("/commissions", deps.Commissions.List)
}
