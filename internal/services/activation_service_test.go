package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
)

// failingStore injects an account upsert failure inside transactions.
type failingStore struct {
	repository.Store
	upsertErr error
}

func (f *failingStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(&failingStore{Store: tx, upsertErr: f.upsertErr})
	})
}

func (f *failingStore) UpsertAccount(ctx context.Context, account *models.PortalAccount) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.Store.UpsertAccount(ctx, account)
}

func TestActivationCreatesClientAccountWithReadMembership(t *testing.T) {
	env := newTestEnv(t)
	project := env.seedProject("P1", nil)
	issued := env.issue("client@example.com", models.RolePortalClient, project)

	result, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "Client@Example.com",
		Code:           testInviteCode,
		Password:       "longenough1",
		FullName:       "Casey Client",
		Meta:           RequestMeta{IP: "203.0.113.9", UserAgent: "test"},
	})
	require.NoError(t, err)

	require.Equal(t, models.RolePortalClient, result.Account.Role)
	require.Equal(t, models.AccountStatusActive, result.Account.Status)
	require.Equal(t, "client@example.com", result.Account.Email)
	require.Equal(t, issued.Invite.ID, result.Account.Metadata["activated_invite_id"])
	require.NotNil(t, result.Account.ContactID)

	memberships, err := env.store.ListMemberships(env.ctx, result.Account.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	require.Equal(t, project.ID, memberships[0].ProjectID)
	require.Equal(t, models.AccessScopeRead, memberships[0].AccessScope)
	require.Equal(t, models.MembershipStatusActive, memberships[0].Status)
	require.Equal(t, models.DefaultDisputeWindowHours, memberships[0].DisputeWindowHours)

	invite := env.reloadInvite(issued.Invite.ID)
	require.Equal(t, models.InviteStatusUsed, invite.Status)
	require.NotNil(t, invite.UsedAt)
	require.Equal(t, result.ExternalUserID, invite.Metadata["activated_user_id"])

	contact, err := env.store.GetContact(env.ctx, env.org, *result.Account.ContactID)
	require.NoError(t, err)
	require.Equal(t, models.ContactTypeClient, contact.ContactType)
	require.Equal(t, "Casey Client", contact.FullName)

	signups := env.events(models.EventSignupOK)
	require.Len(t, signups, 1)
	require.Equal(t, result.Account.ID, *signups[0].PortalAccountID)
	require.Equal(t, "203.0.113.9", signups[0].IP)
}

func TestActivationScopeFollowsRole(t *testing.T) {
	cases := map[models.PortalRole]models.AccessScope{
		models.RolePortalAgentAdmin:  models.AccessScopeFull,
		models.RolePortalAgentMember: models.AccessScopeReadWrite,
		models.RolePortalClient:      models.AccessScopeRead,
	}
	for role, scope := range cases {
		t.Run(string(role), func(t *testing.T) {
			env := newTestEnv(t)
			project := env.seedProject("P1", nil)
			env.issue("user@example.com", role, project)

			result, err := env.activation.Activate(env.ctx, ActivateInput{
				OrganizationID: env.org,
				Email:          "user@example.com",
				Code:           testInviteCode,
				Password:       "longenough1",
			})
			require.NoError(t, err)
			require.NotNil(t, result.Membership)
			require.Equal(t, scope, result.Membership.AccessScope)
			require.Equal(t, "invite:"+result.Invite.ID, result.Membership.GrantedBy)
		})
	}
}

func TestActivationWithoutProjectCreatesNoMembership(t *testing.T) {
	env := newTestEnv(t)
	env.issue("agent@example.com", models.RolePortalAgentMember, nil)

	result, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "agent@example.com",
		Code:           testInviteCode,
		Password:       "longenough1",
	})
	require.NoError(t, err)
	require.Nil(t, result.Membership)

	memberships, err := env.store.ListMemberships(env.ctx, result.Account.ID)
	require.NoError(t, err)
	require.Empty(t, memberships)
}

func TestActivationLinksExistingContactAndRelationships(t *testing.T) {
	env := newTestEnv(t)

	contact := &models.Contact{OrganizationID: env.org, FullName: "Known Buyer", Email: "Buyer@Example.com", ContactType: models.ContactTypeClient}
	require.NoError(t, env.store.CreateContact(env.ctx, contact))
	agency := &models.Agency{OrganizationID: env.org, Name: "Coastal Homes"}
	require.NoError(t, env.store.DB().Create(agency).Error)
	client := &models.Client{OrganizationID: env.org, ContactID: contact.ID, AgencyID: &agency.ID}
	require.NoError(t, env.store.DB().Create(client).Error)

	env.issue("buyer@example.com", models.RolePortalClient, nil)
	result, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "buyer@example.com",
		Code:           testInviteCode,
		Password:       "longenough1",
	})
	require.NoError(t, err)
	require.Equal(t, contact.ID, *result.Account.ContactID)
	require.Equal(t, client.ID, *result.Account.ClientID)
	require.Equal(t, agency.ID, *result.Account.AgencyID)
	require.Equal(t, "Known Buyer", result.Account.FullName)
}

func TestActivationCreateUserFailure(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue("agent@example.com", models.RolePortalAgentMember, nil)
	env.creds.createErr = errors.New("pool quota exceeded")

	_, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "agent@example.com",
		Code:           testInviteCode,
		Password:       "longenough1",
	})
	requireAppError(t, err, "auth_create_user_failed")
	appErr := toAppError(err)
	require.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	require.Equal(t, map[string]any{"message": "pool quota exceeded"}, appErr.Details)

	require.Len(t, env.events(models.EventSignupFail), 1)
	require.Equal(t, models.InviteStatusPending, env.reloadInvite(issued.Invite.ID).Status)
}

func TestActivationRejectsShortPasswordAfterCodeCheck(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue("agent@example.com", models.RolePortalAgentMember, nil)

	_, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "agent@example.com",
		Code:           testInviteCode,
		Password:       "short",
	})
	requireAppError(t, err, "auth_create_user_failed")
	require.Equal(t, http.StatusUnprocessableEntity, toAppError(err).StatusCode)
	require.Empty(t, env.creds.created)
	require.Equal(t, models.InviteStatusPending, env.reloadInvite(issued.Invite.ID).Status)

	_, err = env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "agent@example.com",
		Code:           "ZZZZ9999",
		Password:       "longenough1",
	})
	requireAppError(t, err, "invalid_code")
	requireRemaining(t, err, 4)
}

func TestActivationWithExternalIdentitySkipsCreate(t *testing.T) {
	env := newTestEnv(t)
	env.issue("agent@example.com", models.RolePortalAgentAdmin, nil)

	result, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "agent@example.com",
		Code:           testInviteCode,
		ExternalUserID: "cognito-sub-123",
	})
	require.NoError(t, err)
	require.Equal(t, "cognito-sub-123", result.Account.ExternalUserID)
	require.Empty(t, env.creds.created)
}

func TestActivationReactivatesExistingAccount(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.seedProject("P1", nil)
	p2 := env.seedProject("P2", nil)

	env.issue("agent@example.com", models.RolePortalAgentMember, p1)
	first, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org, Email: "agent@example.com", Code: testInviteCode, ExternalUserID: "ext-agent",
	})
	require.NoError(t, err)
	_, err = env.store.SetAccountStatus(env.ctx, env.org, first.Account.ID, models.AccountStatusBlocked)
	require.NoError(t, err)

	env.issue("agent@example.com", models.RolePortalAgentMember, p2)
	second, err := env.activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org, Email: "agent@example.com", Code: testInviteCode, ExternalUserID: "ext-agent",
	})
	require.NoError(t, err)
	require.Equal(t, first.Account.ID, second.Account.ID)
	require.Equal(t, models.AccountStatusActive, second.Account.Status)

	memberships, err := env.store.ListMemberships(env.ctx, first.Account.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 2)
}

func TestActivationRollsBackAndDeletesIdentity(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue("agent@example.com", models.RolePortalAgentMember, nil)

	activation, err := NewActivationService(&failingStore{Store: env.store, upsertErr: errors.New("disk full")}, env.invites, env.creds, env.audit)
	require.NoError(t, err)

	_, err = activation.Activate(env.ctx, ActivateInput{
		OrganizationID: env.org,
		Email:          "agent@example.com",
		Code:           testInviteCode,
		Password:       "longenough1",
	})
	requireAppError(t, err, "db_account_upsert_error")

	require.Len(t, env.creds.created, 1)
	require.Equal(t, env.creds.created, env.creds.deleted)
	require.Equal(t, models.InviteStatusPending, env.reloadInvite(issued.Invite.ID).Status)

	_, err = env.store.FindContactByEmail(env.ctx, env.org, "agent@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Empty(t, env.events(models.EventSignupOK))
}

func TestActivationConsumesInviteOnce(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue("agent@example.com", models.RolePortalAgentMember, nil)

	const attempts = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.activation.Activate(context.Background(), ActivateInput{
				OrganizationID: env.org,
				Email:          "agent@example.com",
				Code:           testInviteCode,
				ExternalUserID: fmt.Sprintf("ext-%d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	for _, err := range failures {
		requireAppError(t, err, "invite_not_found_or_expired")
	}
	require.Equal(t, models.InviteStatusUsed, env.reloadInvite(issued.Invite.ID).Status)

	accounts, err := env.store.ListAccountsByExternalUser(env.ctx, "ext-0", env.org)
	require.NoError(t, err)
	total := len(accounts)
	for i := 1; i < attempts; i++ {
		accounts, err = env.store.ListAccountsByExternalUser(env.ctx, fmt.Sprintf("ext-%d", i), env.org)
		require.NoError(t, err)
		total += len(accounts)
	}
	require.Equal(t, 1, total)
}

var _ providers.CredentialStore = (*fakeCredentials)(nil)
