package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/metrics"
)

// Contact match strategies recorded in attribution evidence.
const (
	contactMatchEmail   = "email"
	contactMatchPhone   = "phone"
	contactMatchCreated = "created"
)

type SubmitLeadInput struct {
	FullName string
	Email    string
	Phone    string
	Message  string
	Meta     RequestMeta
}

// SubmittedLead is the outcome of a lead submission. Duplicate is set when the
// contact already had a lead on the project.
type SubmittedLead struct {
	Lead      *models.Lead
	Contact   *models.Contact
	Tracking  *models.LeadTracking
	Duplicate bool
}

type LeadListOptions struct {
	ProjectID         string
	AttributionStatus models.AttributionStatus
	Page              int
	PerPage           int
}

// LeadSummary pairs a lead with its attribution record.
type LeadSummary struct {
	Lead     *models.Lead        `json:"lead"`
	Tracking models.LeadTracking `json:"tracking"`
}

type LeadListResult struct {
	Items   []LeadSummary
	Total   int64
	Page    int
	PerPage int
}

// LeadDetail is everything the submitting account may see about one lead.
type LeadDetail struct {
	Lead        *models.Lead          `json:"lead"`
	Contact     *models.Contact       `json:"contact,omitempty"`
	Tracking    *models.LeadTracking  `json:"tracking"`
	Project     *models.Property      `json:"project"`
	Visits      []models.VisitRequest `json:"visits"`
	Commissions []models.Commission   `json:"commissions"`
}

// LeadService records portal lead submissions and their attribution.
type LeadService struct {
	store repository.Store
	gate  *MembershipGate
	audit *AccessLogService
	now   func() time.Time
	log   *zap.Logger
}

func NewLeadService(store repository.Store, gate *MembershipGate, audit *AccessLogService) (*LeadService, error) {
	if store == nil {
		return nil, errors.New("lead service: store is required")
	}
	if gate == nil {
		return nil, errors.New("lead service: membership gate is required")
	}
	return &LeadService{
		store: store,
		gate:  gate,
		audit: audit,
		now:   utcClock(nil),
		log:   logger.WithModule("portal.leads"),
	}, nil
}

// SubmitLead creates a lead for the caller on projectID. A contact that
// already has a lead on the project yields a discarded duplicate lead whose
// tracking row points at the original.
func (s *LeadService) SubmitLead(ctx context.Context, authCtx *AuthContext, projectID string, in SubmitLeadInput) (*SubmittedLead, error) {
	account, err := requireAccount(authCtx)
	if err != nil {
		return nil, err
	}
	access, err := s.gate.AuthorizeProjectWrite(ctx, account, projectID)
	if err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(in.Email)
	phone := models.NormalizePhone(in.Phone)
	if email == "" && phone == "" {
		return nil, ErrEmailOrPhoneRequired
	}

	result := &SubmittedLead{}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		return s.record(ctx, tx, account, access, email, phone, in, result)
	})
	if err != nil {
		return nil, err
	}

	attribution := string(result.Tracking.AttributionStatus)
	metrics.LeadSubmissions.WithLabelValues(attribution).Inc()

	event := AccessEvent{
		OrganizationID:  account.OrganizationID,
		PortalAccountID: account.ID,
		LeadID:          result.Lead.ID,
		ProjectID:       access.Project.ID,
		Email:           account.Email,
		IP:              in.Meta.IP,
		UserAgent:       in.Meta.UserAgent,
	}
	submitted := event
	submitted.EventType = models.EventLeadSubmitted
	submitted.Metadata = map[string]any{"attribution_status": attribution, "contact_id": result.Contact.ID}
	s.audit.Record(ctx, submitted)

	if result.Duplicate {
		duplicate := event
		duplicate.EventType = models.EventDuplicateDetected
		duplicate.Metadata = map[string]any{"duplicate_of_lead_id": derefID(result.Tracking.DuplicateOfLeadID)}
		s.audit.Record(ctx, duplicate)
	}

	return result, nil
}

func (s *LeadService) record(ctx context.Context, tx repository.Store, account *models.PortalAccount, access *ProjectAccess, email, phone string, in SubmitLeadInput, result *SubmittedLead) error {
	orgID := account.OrganizationID
	projectID := access.Project.ID
	now := s.now()

	contact, strategy, err := matchContact(ctx, tx, orgID, email, phone, in)
	if err != nil {
		return err
	}

	prior, err := tx.FindFirstLead(ctx, orgID, projectID, contact.ID)
	if err != nil && !isNotFound(err) {
		return dbError("lead_lookup", err)
	}

	lead := &models.Lead{
		OrganizationID:  orgID,
		ProjectID:       projectID,
		ContactID:       contact.ID,
		Status:          models.LeadStatusNew,
		Source:          models.LeadSourcePortal,
		Message:         strings.TrimSpace(in.Message),
		PortalAccountID: &account.ID,
	}
	attribution := models.AttributionPendingReview
	timelineStatus := models.TimelineReceived
	var duplicateOf *string
	if prior != nil {
		lead.Status = models.LeadStatusDiscarded
		lead.DiscardedReason = models.LeadDiscardDuplicatePortal
		attribution = models.AttributionRejectedDuplicate
		timelineStatus = string(models.AttributionRejectedDuplicate)
		duplicateOf = &prior.ID
	}
	if err := tx.CreateLead(ctx, lead); err != nil {
		return dbError("lead_create", err)
	}

	window := models.ClampDisputeWindow(access.Membership.DisputeWindowHours)
	evidence := datatypes.JSONMap{
		"contact_match":          strategy,
		"contact_id":             contact.ID,
		"submitted_email":        email,
		"submitted_phone":        phone,
		"access_scope":           string(access.Membership.AccessScope),
		"dispute_window_hours":   window,
		"dispute_window_ends_at": now.Add(time.Duration(window) * time.Hour).Format(time.RFC3339),
		"submitted_at":           now.Format(time.RFC3339),
		"ip":                     in.Meta.IP,
		"user_agent":             in.Meta.UserAgent,
	}
	if duplicateOf != nil {
		evidence["duplicate_of_lead_id"] = *duplicateOf
	}

	tracking := &models.LeadTracking{
		LeadID:            lead.ID,
		OrganizationID:    orgID,
		ProjectID:         projectID,
		PortalAccountID:   account.ID,
		AttributionStatus: attribution,
		DuplicateOfLeadID: duplicateOf,
		Evidence:          evidence,
		Timeline: datatypes.JSONSlice[models.TimelineEntry]{{
			At:     now,
			Status: timelineStatus,
			Actor:  "portal_account:" + account.ID,
		}},
	}
	if err := tx.CreateTracking(ctx, tracking); err != nil {
		return dbError("tracking_create", err)
	}

	result.Lead = lead
	result.Contact = contact
	result.Tracking = tracking
	result.Duplicate = duplicateOf != nil
	return nil
}

// matchContact finds the contact by exact normalized email, then by exact
// normalized phone, creating a lead contact when neither matches.
func matchContact(ctx context.Context, tx repository.Store, orgID, email, phone string, in SubmitLeadInput) (*models.Contact, string, error) {
	if email != "" {
		contact, err := tx.FindContactByEmail(ctx, orgID, email)
		if err == nil {
			return contact, contactMatchEmail, nil
		}
		if !isNotFound(err) {
			return nil, "", dbError("contact_lookup", err)
		}
	}
	if phone != "" {
		contact, err := tx.FindContactByPhone(ctx, orgID, phone)
		if err == nil {
			return contact, contactMatchPhone, nil
		}
		if !isNotFound(err) {
			return nil, "", dbError("contact_lookup", err)
		}
	}

	name := strings.TrimSpace(in.FullName)
	if name == "" {
		name = email
	}
	if name == "" {
		name = phone
	}
	contact := &models.Contact{
		OrganizationID: orgID,
		FullName:       name,
		Email:          email,
		Phone:          strings.TrimSpace(in.Phone),
		ContactType:    models.ContactTypeLead,
	}
	if err := tx.CreateContact(ctx, contact); err != nil {
		return nil, "", dbError("contact_create", err)
	}
	return contact, contactMatchCreated, nil
}

// ListLeads returns the leads tracked by the caller, newest first.
func (s *LeadService) ListLeads(ctx context.Context, authCtx *AuthContext, opts LeadListOptions) (*LeadListResult, error) {
	account, err := requireAccount(authCtx)
	if err != nil {
		return nil, err
	}

	page := pageOf(opts.Page, opts.PerPage)
	rows, total, err := s.store.ListTrackingForAccount(ctx, account.ID, repository.LeadFilter{
		ProjectID:         strings.TrimSpace(opts.ProjectID),
		AttributionStatus: opts.AttributionStatus,
	}, page)
	if err != nil {
		return nil, dbError("lead_list", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.LeadID)
	}
	leads, err := s.store.ListLeadsByIDs(ctx, account.OrganizationID, ids)
	if err != nil {
		return nil, dbError("lead_list", err)
	}
	byID := make(map[string]*models.Lead, len(leads))
	for i := range leads {
		byID[leads[i].ID] = &leads[i]
	}

	items := make([]LeadSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, LeadSummary{Lead: byID[row.LeadID], Tracking: row})
	}
	return &LeadListResult{Items: items, Total: total, Page: page.Page, PerPage: page.PerPage}, nil
}

// LeadDetail returns the lead with its contact, attribution, visits and commissions.
func (s *LeadService) LeadDetail(ctx context.Context, authCtx *AuthContext, leadID string) (*LeadDetail, error) {
	account, err := requireAccount(authCtx)
	if err != nil {
		return nil, err
	}
	access, err := s.gate.AuthorizeLead(ctx, account, leadID)
	if err != nil {
		return nil, err
	}

	lead, err := s.store.GetLead(ctx, account.OrganizationID, access.Tracking.LeadID)
	if isNotFound(err) {
		return nil, ErrLeadAccessDenied
	}
	if err != nil {
		return nil, dbError("lead_lookup", err)
	}

	detail := &LeadDetail{Lead: lead, Tracking: access.Tracking, Project: access.Project}

	contact, err := s.store.GetContact(ctx, account.OrganizationID, lead.ContactID)
	switch {
	case err == nil:
		detail.Contact = contact
	case !isNotFound(err):
		return nil, dbError("contact_lookup", err)
	}

	if detail.Visits, err = s.store.ListVisitsByLead(ctx, lead.ID); err != nil {
		return nil, dbError("visit_list", err)
	}
	commissions, _, err := s.store.ListCommissions(ctx, account.ID,
		repository.CommissionFilter{LeadID: lead.ID},
		repository.Pagination{Page: 1, PerPage: 200})
	if err != nil {
		return nil, dbError("commission_list", err)
	}
	detail.Commissions = commissions
	return detail, nil
}

func requireAccount(authCtx *AuthContext) (*models.PortalAccount, error) {
	if authCtx == nil || authCtx.Account == nil {
		return nil, ErrAuthTokenRequired
	}
	return authCtx.Account, nil
}
