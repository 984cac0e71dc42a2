package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/models"
)

type visitFixture struct {
	env     *testEnv
	project *models.Property
	agent   *AuthContext
	lead    *SubmittedLead
}

func newVisitFixture(t *testing.T) *visitFixture {
	t.Helper()
	env := newTestEnv(t)
	project := env.seedProject("P1", nil)
	agent := env.seedAccount("agent@example.com", models.RolePortalAgentMember, project)
	lead, err := env.leads.SubmitLead(env.ctx, agent, project.ID, SubmitLeadInput{Email: "buyer@example.com"})
	require.NoError(t, err)
	return &visitFixture{env: env, project: project, agent: agent, lead: lead}
}

func (f *visitFixture) slot(offset time.Duration) models.VisitSlot {
	end := f.env.now.Add(offset + time.Hour)
	return models.VisitSlot{Start: f.env.now.Add(offset), End: &end}
}

func TestRequestVisitProposalSlots(t *testing.T) {
	f := newVisitFixture(t)

	visit, err := f.env.visits.RequestVisit(f.env.ctx, f.agent, f.lead.Lead.ID, VisitRequestInput{
		ProposedSlots: []models.VisitSlot{f.slot(24 * time.Hour), f.slot(48 * time.Hour)},
		Notes:         " mornings preferred ",
	})
	require.NoError(t, err)
	require.Equal(t, models.VisitModeProposalSlots, visit.RequestMode)
	require.Equal(t, models.VisitStatusRequested, visit.Status)
	require.Equal(t, f.project.ID, visit.ProjectID)
	require.Equal(t, f.agent.Account.ID, visit.PortalAccountID)
	require.Equal(t, "mornings preferred", visit.Notes)
	require.Len(t, visit.ProposedSlots, 2)

	visits, err := f.env.store.ListVisitsByLead(f.env.ctx, f.lead.Lead.ID)
	require.NoError(t, err)
	require.Len(t, visits, 1)

	events := f.env.events(models.EventVisitRequested)
	require.Len(t, events, 1)
	require.Equal(t, f.lead.Lead.ID, *events[0].LeadID)
}

func TestRequestVisitSlotRules(t *testing.T) {
	f := newVisitFixture(t)
	one := []models.VisitSlot{f.slot(time.Hour)}
	four := []models.VisitSlot{f.slot(time.Hour), f.slot(2 * time.Hour), f.slot(3 * time.Hour), f.slot(4 * time.Hour)}

	cases := []struct {
		name string
		in   VisitRequestInput
		code string
	}{
		{"proposal with one slot", VisitRequestInput{ProposedSlots: one}, "proposal_slots_requires_2_to_3_entries"},
		{"proposal with four slots", VisitRequestInput{ProposedSlots: four}, "proposal_slots_requires_2_to_3_entries"},
		{"direct booking with two slots", VisitRequestInput{Mode: models.VisitModeDirectBooking, ProposedSlots: four[:2]}, "direct_booking_requires_1_entry"},
		{"unknown mode", VisitRequestInput{Mode: "walk_in", ProposedSlots: one}, "invalid_request_mode"},
		{"zero start", VisitRequestInput{Mode: models.VisitModeDirectBooking, ProposedSlots: []models.VisitSlot{{}}}, "invalid_visit_slot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.env.visits.RequestVisit(f.env.ctx, f.agent, f.lead.Lead.ID, tc.in)
			requireAppError(t, err, tc.code)
		})
	}

	backwards := f.env.now
	_, err := f.env.visits.RequestVisit(f.env.ctx, f.agent, f.lead.Lead.ID, VisitRequestInput{
		Mode:          models.VisitModeDirectBooking,
		ProposedSlots: []models.VisitSlot{{Start: f.env.now.Add(time.Hour), End: &backwards}},
	})
	requireAppError(t, err, "invalid_visit_slot")

	direct, err := f.env.visits.RequestVisit(f.env.ctx, f.agent, f.lead.Lead.ID, VisitRequestInput{
		Mode:          models.VisitModeDirectBooking,
		ProposedSlots: one,
	})
	require.NoError(t, err)
	require.Equal(t, models.VisitModeDirectBooking, direct.RequestMode)
}

func TestRequestVisitRequiresLeadOwnership(t *testing.T) {
	f := newVisitFixture(t)
	rival := f.env.seedAccount("rival@example.com", models.RolePortalAgentMember, f.project)

	_, err := f.env.visits.RequestVisit(f.env.ctx, rival, f.lead.Lead.ID, VisitRequestInput{
		Mode:          models.VisitModeDirectBooking,
		ProposedSlots: []models.VisitSlot{f.slot(time.Hour)},
	})
	requireAppError(t, err, "lead_access_denied")
}

func TestPatchVisitConfirmation(t *testing.T) {
	f := newVisitFixture(t)
	visit, err := f.env.visits.RequestVisit(f.env.ctx, f.agent, f.lead.Lead.ID, VisitRequestInput{
		ProposedSlots: []models.VisitSlot{f.slot(24 * time.Hour), f.slot(48 * time.Hour)},
	})
	require.NoError(t, err)

	confirmed := models.VisitStatusConfirmed
	_, err = f.env.visits.PatchVisit(f.env.ctx, f.agent, visit.ID, PatchVisitInput{Status: &confirmed})
	requireAppError(t, err, "confirmed_slot_required_for_status")

	slot := f.slot(24 * time.Hour)
	patched, err := f.env.visits.PatchVisit(f.env.ctx, f.agent, visit.ID, PatchVisitInput{Status: &confirmed, ConfirmedSlot: &slot})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusConfirmed, patched.Status)
	require.True(t, patched.ConfirmedSlotStart.Equal(slot.Start))
	require.True(t, patched.ConfirmedSlotEnd.Equal(*slot.End))
	require.Len(t, f.env.events(models.EventVisitConfirmed), 1)

	done := models.VisitStatusDone
	notes := "buyer loved the terrace"
	patched, err = f.env.visits.PatchVisit(f.env.ctx, f.agent, visit.ID, PatchVisitInput{Status: &done, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusDone, patched.Status)
	require.Equal(t, notes, patched.Notes)

	cancelled := models.VisitStatusCancelled
	patched, err = f.env.visits.PatchVisit(f.env.ctx, f.agent, visit.ID, PatchVisitInput{Status: &cancelled})
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusCancelled, patched.Status)
	require.Len(t, f.env.events(models.EventVisitConfirmed), 2)

	bogus := models.VisitStatus("rescheduled")
	_, err = f.env.visits.PatchVisit(f.env.ctx, f.agent, visit.ID, PatchVisitInput{Status: &bogus})
	requireAppError(t, err, "invalid_visit_status")
}

func TestPatchVisitDeniesOtherAccounts(t *testing.T) {
	f := newVisitFixture(t)
	visit, err := f.env.visits.RequestVisit(f.env.ctx, f.agent, f.lead.Lead.ID, VisitRequestInput{
		Mode:          models.VisitModeDirectBooking,
		ProposedSlots: []models.VisitSlot{f.slot(time.Hour)},
	})
	require.NoError(t, err)

	rival := f.env.seedAccount("rival@example.com", models.RolePortalAgentMember, f.project)
	notes := "hijack"
	_, err = f.env.visits.PatchVisit(f.env.ctx, rival, visit.ID, PatchVisitInput{Notes: &notes})
	requireAppError(t, err, "visit_access_denied")

	_, err = f.env.visits.PatchVisit(f.env.ctx, f.agent, "00000000-0000-4000-8000-000000000000", PatchVisitInput{Notes: &notes})
	requireAppError(t, err, "visit_access_denied")
}

func TestPatchVisitDeniedAfterMembershipRevoked(t *testing.T) {
	f := newVisitFixture(t)
	visit, err := f.env.visits.RequestVisit(f.env.ctx, f.agent, f.lead.Lead.ID, VisitRequestInput{
		Mode:          models.VisitModeDirectBooking,
		ProposedSlots: []models.VisitSlot{f.slot(time.Hour)},
	})
	require.NoError(t, err)

	membership, err := f.env.store.GetMembership(f.env.ctx, f.agent.Account.ID, f.project.ID)
	require.NoError(t, err)
	membership.Status = models.MembershipStatusRevoked
	require.NoError(t, f.env.store.SaveMembership(f.env.ctx, membership))

	_, err = f.env.leads.LeadDetail(f.env.ctx, f.agent, f.lead.Lead.ID)
	requireAppError(t, err, "lead_access_denied")

	confirmed := models.VisitStatusConfirmed
	slot := f.slot(time.Hour)
	_, err = f.env.visits.PatchVisit(f.env.ctx, f.agent, visit.ID, PatchVisitInput{Status: &confirmed, ConfirmedSlot: &slot})
	requireAppError(t, err, "visit_access_denied")

	stored, err := f.env.store.GetVisit(f.env.ctx, f.agent.Account.OrganizationID, visit.ID)
	require.NoError(t, err)
	require.Equal(t, models.VisitStatusRequested, stored.Status)
	require.Empty(t, f.env.events(models.EventVisitConfirmed))
}
