package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/handlers/testutil"
	"github.com/charlesng35/estateportal/internal/monitoring"
)

func TestHealthReportsDatabase(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var status struct {
		Status string                   `json:"status"`
		Checks []monitoring.ProbeResult `json:"checks"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &status)
	require.Equal(t, "ok", status.Status)
	require.NotEmpty(t, status.Checks)
	require.Equal(t, "database", status.Checks[0].Component)

	require.NoError(t, env.Store.Close())
	resp = env.Request(http.MethodGet, "/health", nil, "")
	testutil.RequireError(t, resp, http.StatusServiceUnavailable, "database_unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	env.Request(http.MethodGet, "/health", nil, "")
	resp := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "estateportal_api_latency_seconds")
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/portal/nowhere", nil, "")
	testutil.RequireError(t, resp, http.StatusNotFound, "route_not_found")
}
