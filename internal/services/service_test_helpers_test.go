package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	apperrors "github.com/charlesng35/estateportal/pkg/errors"
)

const testInviteCode = "ABCD1234"

// fakeCredentials is an in-memory credential store.
type fakeCredentials struct {
	mu          sync.Mutex
	seq         int
	users       map[string]fakeUser
	tokens      map[string]string
	expiry      map[string]time.Time
	createErr   error
	created     []string
	deleted     []string
	verifyCalls int
}

type fakeUser struct {
	id       string
	email    string
	password string
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{users: map[string]fakeUser{}, tokens: map[string]string{}, expiry: map[string]time.Time{}}
}

func (f *fakeCredentials) Name() string { return "fake" }

func (f *fakeCredentials) CreateUser(_ context.Context, in providers.CreateUserInput) (*providers.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.users[in.Email]; ok {
		return nil, providers.ErrUserExists
	}
	f.seq++
	user := fakeUser{id: fmt.Sprintf("ext-user-%d", f.seq), email: in.Email, password: in.Password}
	f.users[in.Email] = user
	f.created = append(f.created, user.id)
	return &providers.Identity{UserID: user.id, Email: in.Email, FullName: in.FullName}, nil
}

func (f *fakeCredentials) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, user := range f.users {
		if user.id == userID {
			delete(f.users, email)
		}
	}
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakeCredentials) Login(_ context.Context, in providers.LoginInput) (*providers.Tokens, *providers.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[in.Email]
	if !ok || user.password != in.Password {
		return nil, nil, providers.ErrInvalidCredentials
	}
	token := "access-" + user.id
	f.tokens[token] = user.id
	return &providers.Tokens{AccessToken: token, RefreshToken: "refresh-" + user.id, TokenType: "Bearer", ExpiresIn: time.Hour},
		&providers.Identity{UserID: user.id, Email: user.email}, nil
}

func (f *fakeCredentials) Refresh(_ context.Context, refreshToken string) (*providers.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if refreshToken == "refresh-"+user.id {
			token := "access-" + user.id
			f.tokens[token] = user.id
			return &providers.Tokens{AccessToken: token, RefreshToken: refreshToken, TokenType: "Bearer"}, nil
		}
	}
	return nil, providers.ErrInvalidToken
}

func (f *fakeCredentials) VerifyToken(_ context.Context, token string) (*providers.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	userID, ok := f.tokens[token]
	if !ok {
		return nil, providers.ErrInvalidToken
	}
	return &providers.Identity{UserID: userID, ExpiresAt: f.expiry[token]}, nil
}

// issueTokenUntil registers a bearer token that reports exp as its expiry.
func (f *fakeCredentials) issueTokenUntil(userID string, exp time.Time) string {
	token := f.issueToken(userID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiry[token] = exp
	return token
}

// revokeToken makes the store reject token from now on.
func (f *fakeCredentials) revokeToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
}

// issueToken registers a bearer token for userID without a login.
func (f *fakeCredentials) issueToken(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "token-" + userID
	f.tokens[token] = userID
	return token
}

type testEnv struct {
	t     *testing.T
	ctx   context.Context
	org   string
	now   time.Time
	store *repository.MemoryStore
	creds *fakeCredentials

	audit       *AccessLogService
	invites     *InviteService
	activation  *ActivationService
	resolver    *AuthContextResolver
	login       *LoginService
	gate        *MembershipGate
	leads       *LeadService
	visits      *VisitService
	commissions *CommissionService
	admin       *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := repository.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		t:     t,
		ctx:   context.Background(),
		org:   uuid.NewString(),
		now:   time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		store: store,
		creds: newFakeCredentials(),
	}
	clock := func() time.Time { return env.now }

	env.audit, err = NewAccessLogService(store)
	require.NoError(t, err)
	env.audit.now = clock

	env.invites, err = NewInviteService(store, env.audit,
		WithInviteClock(clock),
		WithInviteCodeGenerator(func() (string, error) { return testInviteCode, nil }),
	)
	require.NoError(t, err)

	env.activation, err = NewActivationService(store, env.invites, env.creds, env.audit)
	require.NoError(t, err)

	env.resolver, err = NewAuthContextResolver(store, env.creds)
	require.NoError(t, err)

	env.login, err = NewLoginService(store, env.creds, env.audit)
	require.NoError(t, err)
	env.login.now = clock

	env.gate, err = NewMembershipGate(store)
	require.NoError(t, err)

	env.leads, err = NewLeadService(store, env.gate, env.audit)
	require.NoError(t, err)
	env.leads.now = clock

	env.visits, err = NewVisitService(store, env.gate, env.audit)
	require.NoError(t, err)

	env.commissions, err = NewCommissionService(store)
	require.NoError(t, err)

	env.admin, err = NewAdminService(store, env.audit)
	require.NoError(t, err)
	env.admin.now = clock

	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) seedProject(name string, attrs map[string]any) *models.Property {
	e.t.Helper()
	project := &models.Property{
		OrganizationID: e.org,
		RecordType:     models.RecordTypeProject,
		Name:           name,
		Slug:           name,
	}
	if attrs != nil {
		project.Attributes = datatypes.JSONMap(attrs)
	}
	require.NoError(e.t, e.store.DB().Create(project).Error)
	return project
}

func (e *testEnv) seedUnit(parent *models.Property, name string) *models.Property {
	e.t.Helper()
	unit := &models.Property{
		OrganizationID: e.org,
		RecordType:     models.RecordTypeUnit,
		ParentID:       &parent.ID,
		Name:           name,
	}
	require.NoError(e.t, e.store.DB().Create(unit).Error)
	return unit
}

// seedAccount creates an active account with an active membership on each
// project using the role's default scope.
func (e *testEnv) seedAccount(email string, role models.PortalRole, projects ...*models.Property) *AuthContext {
	e.t.Helper()
	account := &models.PortalAccount{
		OrganizationID: e.org,
		ExternalUserID: "ext-" + uuid.NewString(),
		Email:          email,
		FullName:       email,
		Role:           role,
		Status:         models.AccountStatusActive,
	}
	require.NoError(e.t, e.store.UpsertAccount(e.ctx, account))
	for _, project := range projects {
		require.NoError(e.t, e.store.UpsertMembership(e.ctx, &models.PortalMembership{
			OrganizationID:     e.org,
			PortalAccountID:    account.ID,
			ProjectID:          project.ID,
			AccessScope:        role.DefaultScope(),
			Status:             models.MembershipStatusActive,
			DisputeWindowHours: models.DefaultDisputeWindowHours,
		}))
	}
	return &AuthContext{ExternalUserID: account.ExternalUserID, OrganizationID: e.org, Email: email, Account: account}
}

func (e *testEnv) issue(email string, role models.PortalRole, project *models.Property) *IssuedInvite {
	e.t.Helper()
	in := IssueInviteInput{
		OrganizationID: e.org,
		Email:          email,
		InviteType:     role.InviteType(),
		Role:           role,
		CreatedBy:      "admin",
	}
	if project != nil {
		in.ProjectID = project.ID
	}
	issued, err := e.invites.Issue(e.ctx, in)
	require.NoError(e.t, err)
	return issued
}

func (e *testEnv) events(eventType models.AccessEventType) []models.PortalAccessLog {
	e.t.Helper()
	rows, _, err := e.store.ListAccessLogs(e.ctx, repository.AccessLogFilter{
		OrganizationID: e.org,
		EventType:      eventType,
	}, repository.Pagination{PerPage: 200})
	require.NoError(e.t, err)
	return rows
}

func (e *testEnv) reloadInvite(id string) *models.PortalInvite {
	e.t.Helper()
	invite, err := e.store.GetInvite(e.ctx, e.org, id)
	require.NoError(e.t, err)
	return invite
}

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := toAppError(err)
	require.NotNil(t, appErr, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func requireRemaining(t *testing.T, err error, remaining int) {
	t.Helper()
	appErr := toAppError(err)
	require.NotNil(t, appErr)
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, remaining, details["remaining_attempts"])
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
