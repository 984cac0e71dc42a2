package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/handlers"
)

type adminRouteDeps struct {
	Invites *handlers.InviteHandler
	Admin   *handlers.AdminHandler
}

func registerAdminRoutes(admin *gin.RouterGroup, deps adminRouteDeps) {
	invites := admin.Group("/invites")
	{
		invites.GET("", deps.Invites.List)
		invites.POST("", deps.Invites.Create)
		invites.POST("/:id/revoke", deps.Invites.Revoke)
	}

	memberships := admin.Group("/memberships")
	{
		memberships.POST("", deps.Admin.GrantMembership)
		memberships.PATCH("/:id", deps.Admin.UpdateMembership)
	}

	admin.PATCH("/accounts/:id/status", deps.Admin.SetAccountStatus)
	admin.GET("/access-logs", deps.Admin.AccessLogs)
}
