package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersOnSuccessAndAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/portal/me", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/portal/invites", AdminKey(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	expected := map[string]string{
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Content-Security-Policy":   DefaultContentSecurityPolicy,
		"Referrer-Policy":           "no-referrer",
		"Cache-Control":             "no-store",
	}

	for _, path := range []string{"/portal/me", "/portal/invites"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		for header, value := range expected {
			require.Equal(t, value, w.Header().Get(header), "%s on %s", header, path)
		}
	}
}
