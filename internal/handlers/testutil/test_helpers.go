package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/charlesng35/estateportal/internal/api"
	"github.com/charlesng35/estateportal/internal/app"
	iauth "github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/cache"
	"github.com/charlesng35/estateportal/internal/middleware"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/response"
)

// AdminKey is the admin key configured for every test environment.
const AdminKey = "test-admin-key"

// Option adjusts the configuration before the router is built.
type Option func(*app.Config)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T           *testing.T
	Store       *repository.MemoryStore
	Router      *gin.Engine
	Services    *api.Services
	Credentials *providers.LocalStore
	Config      *app.Config
	Org         string
}

// NewEnv provisions a fresh handler test environment backed by the local credential store.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	store, err := repository.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &app.Config{}
	cfg.Server.AdminKey = AdminKey
	cfg.Server.RateLimit = app.RateLimitConfig{Requests: 1000, Window: time.Minute}
	cfg.Monitoring.Prometheus = app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}
	cfg.Auth.JWT = app.JWTSettings{
		Secret: "test-suite-super-secret-key-32-bytes!!",
		Issuer: "test-suite",
		TTL:    time.Hour,
	}
	cfg.Auth.Session = app.SessionSettings{RefreshTTL: 24 * time.Hour, RefreshLength: 48}
	// Cheap argon2 parameters keep the suite fast.
	cfg.Invites.KDF = app.KDFConfig{Time: 1, Memory: 64, Threads: 1, KeyLength: 16}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(store.DB(), jwtSvc, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)
	creds, err := providers.NewLocalStore(store.DB(), jwtSvc, sessions, providers.LocalConfig{})
	require.NoError(t, err)

	router, svc, err := api.Build(cfg, api.Dependencies{
		Store:       store,
		Credentials: creds,
		Cache:       cache.NewDatabaseStore(store.DB()),
		RateStore:   middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:           t,
		Store:       store,
		Router:      router,
		Services:    svc,
		Credentials: creds,
		Config:      cfg,
		Org:         uuid.NewString(),
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
	Meta    *response.Meta  `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// RequireError asserts an error envelope with the given status and code.
func RequireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) APIResponse {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeResponse(t, w)
	require.False(t, resp.OK)
	require.Equal(t, code, resp.Error, w.Body.String())
	return resp
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string, headers ...map[string]string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(e.T, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "handler-tests")
	for _, set := range headers {
		for k, v := range set {
			req.Header.Set(k, v)
		}
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// AdminRequest is Request carrying the admin key and the environment's organization.
func (e *Env) AdminRequest(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.Request(method, path, body, "", map[string]string{
		middleware.HeaderAdminKey:       AdminKey,
		middleware.HeaderOrganizationID: e.Org,
	})
}

// SeedProject inserts a published top-level project for the environment's organization.
func (e *Env) SeedProject(name string) *models.Property {
	e.T.Helper()
	project := &models.Property{
		OrganizationID: e.Org,
		RecordType:     models.RecordTypeProject,
		Name:           name,
		Slug:           name,
		Attributes:     datatypes.JSONMap{"portal_enabled": true},
	}
	require.NoError(e.T, e.Store.DB().Create(project).Error)
	return project
}

// IssuedInvite mirrors the invite creation payload.
type IssuedInvite struct {
	Invite    models.PortalInvite `json:"invite"`
	Code      string              `json:"code"`
	EmailSent bool                `json:"email_sent"`
}

// IssueInvite creates an invite through the admin API.
func (e *Env) IssueInvite(email string, role models.PortalRole, projectID string) IssuedInvite {
	e.T.Helper()

	w := e.AdminRequest(http.MethodPost, "/api/portal/invites", map[string]any{
		"email":       email,
		"invite_type": string(role.InviteType()),
		"role":        string(role),
		"project_id":  projectID,
	})
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var issued IssuedInvite
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &issued)
	require.NotEmpty(e.T, issued.Code)
	return issued
}

// Activate redeems an invite code and creates a local identity.
func (e *Env) Activate(email, code, password string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.Request(http.MethodPost, "/api/portal/auth/activate", map[string]any{
		"organization_id": e.Org,
		"email":           email,
		"code":            code,
		"password":        password,
		"full_name":       "Test " + email,
	}, "")
}

// Tokens mirrors the token payload returned from login and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResult bundles the JSON response from POST /api/portal/auth/login.
type LoginResult struct {
	Account models.PortalAccount `json:"account"`
	Tokens  Tokens               `json:"tokens"`
}

// Login authenticates against the local credential store.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/portal/auth/login", map[string]any{
		"organization_id": e.Org,
		"email":           email,
		"password":        password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	require.Greater(e.T, result.Tokens.ExpiresIn, int64(0))
	return result
}

// Onboard issues, activates and logs in a portal user with access to project.
func (e *Env) Onboard(email string, role models.PortalRole, project *models.Property) LoginResult {
	e.T.Helper()

	const password = "Secret123!"
	issued := e.IssueInvite(email, role, project.ID)
	w := e.Activate(email, issued.Code, password)
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())
	return e.Login(email, password)
}
