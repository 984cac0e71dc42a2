package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/models"
)

func TestListCommissionsScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.seedProject("P1", nil)
	p2 := env.seedProject("P2", nil)
	agent := env.seedAccount("agent@example.com", models.RolePortalAgentMember, p1, p2)
	rival := env.seedAccount("rival@example.com", models.RolePortalAgentMember, p1)

	rows := []models.Commission{
		{OrganizationID: env.org, PortalAccountID: agent.Account.ID, ProjectID: &p1.ID, AmountCents: 100, Currency: "EUR", Status: models.CommissionStatusPending},
		{OrganizationID: env.org, PortalAccountID: agent.Account.ID, ProjectID: &p2.ID, AmountCents: 200, Currency: "EUR", Status: models.CommissionStatusPaid},
		{OrganizationID: env.org, PortalAccountID: agent.Account.ID, ProjectID: &p1.ID, AmountCents: 300, Currency: "EUR", Status: models.CommissionStatusPaid},
		{OrganizationID: env.org, PortalAccountID: rival.Account.ID, ProjectID: &p1.ID, AmountCents: 999, Currency: "EUR", Status: models.CommissionStatusPaid},
	}
	require.NoError(t, env.store.DB().Create(&rows).Error)

	all, err := env.commissions.ListCommissions(env.ctx, agent, CommissionListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 3, all.Total)
	for _, c := range all.Commissions {
		require.Equal(t, agent.Account.ID, c.PortalAccountID)
	}

	paid, err := env.commissions.ListCommissions(env.ctx, agent, CommissionListOptions{Status: models.CommissionStatusPaid})
	require.NoError(t, err)
	require.EqualValues(t, 2, paid.Total)

	paidOnP1, err := env.commissions.ListCommissions(env.ctx, agent, CommissionListOptions{Status: models.CommissionStatusPaid, ProjectID: p1.ID})
	require.NoError(t, err)
	require.Len(t, paidOnP1.Commissions, 1)
	require.EqualValues(t, 300, paidOnP1.Commissions[0].AmountCents)

	paged, err := env.commissions.ListCommissions(env.ctx, agent, CommissionListOptions{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, paged.Commissions, 1)
	require.Equal(t, 2, paged.Page)
	require.Equal(t, 2, paged.PerPage)

	_, err = env.commissions.ListCommissions(env.ctx, nil, CommissionListOptions{})
	requireAppError(t, err, "auth_token_required")
}
