package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/auditctx"
	"github.com/charlesng35/estateportal/internal/services"
	"github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/response"
)

const (
	CtxAuthContextKey = "portalAuthContext"
	CtxAccountIDKey   = "portalAccountID"

	HeaderOrganizationID = "X-Organization-ID"
	HeaderAdminKey       = "X-Portal-Admin-Key"
	HeaderAdminActor     = "X-Portal-Actor"
)

var errAdminKeyRequired = errors.New("admin_key_required", "A valid admin key is required", http.StatusUnauthorized)

// ContextResolver maps a bearer token to the calling portal account.
type ContextResolver interface {
	Resolve(ctx context.Context, token string, opts services.ResolveOptions) (*services.AuthContext, error)
}

// PortalAuth resolves the bearer token into an AuthContext. The optional
// X-Organization-ID header restricts resolution to one organization.
func PortalAuth(resolver ContextResolver) gin.HandlerFunc {
	return portalAuth(resolver, false)
}

// PortalSelfAuth is PortalAuth for self-service routes that must still
// answer for pending or blocked accounts.
func PortalSelfAuth(resolver ContextResolver) gin.HandlerFunc {
	return portalAuth(resolver, true)
}

func portalAuth(resolver ContextResolver, allowInactive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, err := resolver.Resolve(c.Request.Context(), BearerToken(c), services.ResolveOptions{
			OrganizationID: strings.TrimSpace(c.GetHeader(HeaderOrganizationID)),
			AllowInactive:  allowInactive,
		})
		if err != nil {
			if appErr := errors.FromError(err); appErr.StatusCode == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", "Bearer")
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxAuthContextKey, authCtx)
		c.Set(CtxAccountIDKey, authCtx.Account.ID)
		c.Next()
	}
}

// AuthContextFrom returns the AuthContext stored by PortalAuth.
func AuthContextFrom(c *gin.Context) *services.AuthContext {
	value, ok := c.Get(CtxAuthContextKey)
	if !ok {
		return nil
	}
	authCtx, _ := value.(*services.AuthContext)
	return authCtx
}

// AdminKey guards administrative routes with a shared key compared in
// constant time. An empty configured key rejects every request. Accepted
// requests carry an auditctx.Actor labelled "admin" or "admin:<X-Portal-Actor>".
func AdminKey(key string) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		provided := []byte(c.GetHeader(HeaderAdminKey))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			response.Error(c, errAdminKeyRequired)
			c.Abort()
			return
		}

		label := "admin"
		if actor := strings.TrimSpace(c.GetHeader(HeaderAdminActor)); actor != "" {
			label += ":" + actor
		}
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			Label:     label,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))
		c.Next()
	}
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}
