package services

import (
	"context"
	"errors"
	"strings"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/metrics"
)

// ProjectAccess is a project the caller may see, with the membership granting it.
type ProjectAccess struct {
	Project    *models.Property         `json:"project"`
	Membership *models.PortalMembership `json:"membership"`
}

// LeadAccess is a tracked lead the caller owns.
type LeadAccess struct {
	ProjectAccess
	Tracking *models.LeadTracking `json:"tracking"`
}

// ProjectDetail is a project with the content and documents visible to the caller.
type ProjectDetail struct {
	ProjectAccess
	ContentBlocks []models.ProjectContentBlock `json:"content_blocks"`
	Documents     []models.ProjectDocument     `json:"documents"`
}

// MembershipGate decides whether a portal account may reach a project or a
// tracked lead. Every denial is reported with the same error so callers
// cannot probe for the existence of projects or leads.
type MembershipGate struct {
	store repository.Store
}

func NewMembershipGate(store repository.Store) (*MembershipGate, error) {
	if store == nil {
		return nil, errors.New("membership gate: store is required")
	}
	return &MembershipGate{store: store}, nil
}

// AuthorizeProject requires an active account with an active membership on a
// published top-level project of the same organization.
func (g *MembershipGate) AuthorizeProject(ctx context.Context, account *models.PortalAccount, projectID string) (*ProjectAccess, error) {
	access, err := g.authorizeProject(ctx, account, strings.TrimSpace(projectID))
	if errors.Is(err, ErrProjectAccessDenied) {
		metrics.GateDecisions.WithLabelValues("project", "deny").Inc()
	} else if err == nil {
		metrics.GateDecisions.WithLabelValues("project", "allow").Inc()
	}
	return access, err
}

func (g *MembershipGate) authorizeProject(ctx context.Context, account *models.PortalAccount, projectID string) (*ProjectAccess, error) {
	if account == nil || account.Status != models.AccountStatusActive || projectID == "" {
		return nil, ErrProjectAccessDenied
	}

	membership, err := g.store.GetMembership(ctx, account.ID, projectID)
	if isNotFound(err) {
		return nil, ErrProjectAccessDenied
	}
	if err != nil {
		return nil, dbError("membership_lookup", err)
	}
	if membership.Status != models.MembershipStatusActive || membership.OrganizationID != account.OrganizationID {
		return nil, ErrProjectAccessDenied
	}

	project, err := g.store.GetProperty(ctx, account.OrganizationID, projectID)
	if isNotFound(err) {
		return nil, ErrProjectAccessDenied
	}
	if err != nil {
		return nil, dbError("property_lookup", err)
	}
	if !visibleProject(project) {
		return nil, ErrProjectAccessDenied
	}

	return &ProjectAccess{Project: project, Membership: membership}, nil
}

// AuthorizeProjectWrite additionally requires a read_write or full scope.
func (g *MembershipGate) AuthorizeProjectWrite(ctx context.Context, account *models.PortalAccount, projectID string) (*ProjectAccess, error) {
	access, err := g.AuthorizeProject(ctx, account, projectID)
	if err != nil {
		return nil, err
	}
	if !access.Membership.AccessScope.AllowsWrite() {
		metrics.GateDecisions.WithLabelValues("project_write", "deny").Inc()
		return nil, ErrProjectWriteDenied
	}
	return access, nil
}

// AuthorizeLead requires the lead to be tracked by the caller and its project
// to pass the project gate.
func (g *MembershipGate) AuthorizeLead(ctx context.Context, account *models.PortalAccount, leadID string) (*LeadAccess, error) {
	access, err := g.authorizeLead(ctx, account, strings.TrimSpace(leadID))
	if errors.Is(err, ErrLeadAccessDenied) {
		metrics.GateDecisions.WithLabelValues("lead", "deny").Inc()
	} else if err == nil {
		metrics.GateDecisions.WithLabelValues("lead", "allow").Inc()
	}
	return access, err
}

func (g *MembershipGate) authorizeLead(ctx context.Context, account *models.PortalAccount, leadID string) (*LeadAccess, error) {
	if account == nil || leadID == "" {
		return nil, ErrLeadAccessDenied
	}

	tracking, err := g.store.GetTrackingByLead(ctx, leadID)
	if isNotFound(err) {
		return nil, ErrLeadAccessDenied
	}
	if err != nil {
		return nil, dbError("tracking_lookup", err)
	}
	if tracking.PortalAccountID != account.ID || tracking.OrganizationID != account.OrganizationID {
		return nil, ErrLeadAccessDenied
	}

	project, err := g.authorizeProject(ctx, account, tracking.ProjectID)
	if errors.Is(err, ErrProjectAccessDenied) {
		return nil, ErrLeadAccessDenied
	}
	if err != nil {
		return nil, err
	}
	return &LeadAccess{ProjectAccess: *project, Tracking: tracking}, nil
}

// ListProjects returns the published projects the account holds an active
// membership on, ordered by project name.
func (g *MembershipGate) ListProjects(ctx context.Context, account *models.PortalAccount) ([]ProjectAccess, error) {
	if account == nil || account.Status != models.AccountStatusActive {
		return []ProjectAccess{}, nil
	}

	memberships, err := g.store.ListMemberships(ctx, account.ID)
	if err != nil {
		return nil, dbError("membership_list", err)
	}

	byProject := make(map[string]*models.PortalMembership, len(memberships))
	ids := make([]string, 0, len(memberships))
	for i := range memberships {
		m := &memberships[i]
		if m.Status != models.MembershipStatusActive || m.OrganizationID != account.OrganizationID {
			continue
		}
		byProject[m.ProjectID] = m
		ids = append(ids, m.ProjectID)
	}

	properties, err := g.store.ListProperties(ctx, account.OrganizationID, normaliseIDs(ids))
	if err != nil {
		return nil, dbError("property_list", err)
	}

	out := make([]ProjectAccess, 0, len(properties))
	for i := range properties {
		project := &properties[i]
		if !visibleProject(project) {
			continue
		}
		out = append(out, ProjectAccess{Project: project, Membership: byProject[project.ID]})
	}
	return out, nil
}

// Memberships returns every membership the account holds in its own
// organization, including suspended and revoked ones.
func (g *MembershipGate) Memberships(ctx context.Context, account *models.PortalAccount) ([]models.PortalMembership, error) {
	if account == nil {
		return []models.PortalMembership{}, nil
	}
	memberships, err := g.store.ListMemberships(ctx, account.ID)
	if err != nil {
		return nil, dbError("membership_list", err)
	}
	out := make([]models.PortalMembership, 0, len(memberships))
	for _, m := range memberships {
		if m.OrganizationID == account.OrganizationID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ProjectDetail returns the project with content blocks filtered by audience
// and documents filtered by visibility for the caller's role family.
func (g *MembershipGate) ProjectDetail(ctx context.Context, account *models.PortalAccount, projectID string) (*ProjectDetail, error) {
	access, err := g.AuthorizeProject(ctx, account, projectID)
	if err != nil {
		return nil, err
	}
	family := account.Role.Family()

	blocks, err := g.store.ListContentBlocks(ctx, access.Project.ID)
	if err != nil {
		return nil, dbError("content_list", err)
	}
	visibleBlocks := make([]models.ProjectContentBlock, 0, len(blocks))
	for _, block := range blocks {
		if block.Audience.VisibleTo(family) {
			visibleBlocks = append(visibleBlocks, block)
		}
	}

	documents, err := g.store.ListDocuments(ctx, access.Project.ID)
	if err != nil {
		return nil, dbError("document_list", err)
	}
	visibleDocs := make([]models.ProjectDocument, 0, len(documents))
	for _, doc := range documents {
		if doc.Visibility.VisibleTo(family) {
			visibleDocs = append(visibleDocs, doc)
		}
	}

	return &ProjectDetail{ProjectAccess: *access, ContentBlocks: visibleBlocks, Documents: visibleDocs}, nil
}

func visibleProject(p *models.Property) bool {
	return p != nil && p.RecordType == models.RecordTypeProject && p.ParentID == nil && p.PortalPublished()
}
