package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/auditctx"
	"github.com/charlesng35/estateportal/internal/middleware"
	"github.com/charlesng35/estateportal/internal/services"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

func requestMeta(c *gin.Context) services.RequestMeta {
	if c == nil || c.Request == nil {
		return services.RequestMeta{}
	}
	return services.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// organizationID picks the organization for public and admin routes: the
// body value when present, then the query string, then the header.
func organizationID(c *gin.Context, fromBody string) string {
	if value := strings.TrimSpace(fromBody); value != "" {
		return value
	}
	if value := strings.TrimSpace(c.Query("organization_id")); value != "" {
		return value
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderOrganizationID))
}

// adminActor labels admin-key callers in audit metadata.
func adminActor(c *gin.Context) string {
	if actor, ok := auditctx.FromContext(requestContext(c)); ok && actor.Label != "" {
		return actor.Label
	}
	return "admin"
}
