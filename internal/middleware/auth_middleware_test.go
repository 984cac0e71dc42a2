package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/auditctx"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/services"
	"github.com/charlesng35/estateportal/pkg/response"
)

type stubResolver struct {
	lastOpts services.ResolveOptions
}

func (s *stubResolver) Resolve(_ context.Context, token string, opts services.ResolveOptions) (*services.AuthContext, error) {
	s.lastOpts = opts
	switch token {
	case "":
		return nil, services.ErrAuthTokenRequired
	case "good":
		account := &models.PortalAccount{OrganizationID: "org-1", Status: models.AccountStatusActive}
		account.ID = "account-1"
		return &services.AuthContext{ExternalUserID: "ext-1", OrganizationID: "org-1", Account: account}, nil
	case "blocked":
		return nil, services.ErrAccountNotActive
	default:
		return nil, services.ErrInvalidAuthToken
	}
}

func TestPortalAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := &stubResolver{}

	r := gin.New()
	r.GET("/secure", PortalAuth(resolver), func(c *gin.Context) {
		authCtx := AuthContextFrom(c)
		c.JSON(http.StatusOK, gin.H{"account_id": authCtx.Account.ID, "ctx_account": c.GetString(CtxAccountIDKey)})
	})

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "auth_token_required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "auth_token_required"},
		{"invalid token", "Bearer forged", http.StatusUnauthorized, "invalid_auth_token"},
		{"inactive account", "Bearer blocked", http.StatusForbidden, "portal_account_not_active"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)

			var payload response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
			require.False(t, payload.OK)
			require.Equal(t, tc.code, payload.Error)
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "bearer good")
	req.Header.Set(HeaderOrganizationID, " org-1 ")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "org-1", resolver.lastOpts.OrganizationID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "account-1", payload["account_id"])
	require.Equal(t, "account-1", payload["ctx_account"])
	require.False(t, resolver.lastOpts.AllowInactive)
}

func TestPortalSelfAuthAllowsInactive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := &stubResolver{}

	r := gin.New()
	r.GET("/me", PortalSelfAuth(resolver), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.True(t, resolver.lastOpts.AllowInactive)
}

func TestAdminKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(key string) *gin.Engine {
		r := gin.New()
		r.GET("/admin", AdminKey(key), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	serve := func(r *gin.Engine, key string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if key != "" {
			req.Header.Set(HeaderAdminKey, key)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	r := newRouter("s3cret-admin-key")
	require.Equal(t, http.StatusNoContent, serve(r, "s3cret-admin-key"))
	require.Equal(t, http.StatusUnauthorized, serve(r, "s3cret-admin-kez"))
	require.Equal(t, http.StatusUnauthorized, serve(r, ""))

	unconfigured := newRouter("")
	require.Equal(t, http.StatusUnauthorized, serve(unconfigured, ""))
	require.Equal(t, http.StatusUnauthorized, serve(unconfigured, "anything"))
}

func TestAdminKeyStampsActor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen auditctx.Actor
	r := gin.New()
	r.GET("/admin", AdminKey("s3cret-admin-key"), func(c *gin.Context) {
		seen, _ = auditctx.FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	serve := func(actor string) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(HeaderAdminKey, "s3cret-admin-key")
		req.Header.Set("User-Agent", "ops-console")
		if actor != "" {
			req.Header.Set(HeaderAdminActor, actor)
		}
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	serve("")
	require.Equal(t, "admin", seen.Label)
	require.Equal(t, "ops-console", seen.UserAgent)

	serve(" dana ")
	require.Equal(t, "admin:dana", seen.Label)
	require.NotEmpty(t, seen.IPAddress)
}
