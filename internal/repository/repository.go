// Package repository is the persistence boundary for the portal services.
// Every service receives a Store; the gorm implementation serves SQLite,
// PostgreSQL and MySQL, and NewMemoryStore provides a private in-memory
// database for tests and local demo mode.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/estateportal/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repository: not found")

// Pagination selects a page of results. Zero values fall back to page 1 of 50.
type Pagination struct {
	Page    int
	PerPage int
}

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Normalize applies the default and maximum page sizes.
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.PerPage
}

type InviteFilter struct {
	Status    models.InviteStatus
	ProjectID string
	Email     string
}

// InviteTransition describes a guarded status change. The update only applies
// while the stored status is one of From.
type InviteTransition struct {
	From     []models.InviteStatus
	To       models.InviteStatus
	UsedAt   *time.Time
	Metadata map[string]any
}

type LeadFilter struct {
	ProjectID         string
	AttributionStatus models.AttributionStatus
}

type CommissionFilter struct {
	Status    models.CommissionStatus
	ProjectID string
	LeadID    string
}

type AccessLogFilter struct {
	OrganizationID  string
	PortalAccountID string
	EventType       models.AccessEventType
	Email           string
	Since           *time.Time
	Until           *time.Time
}

// InviteRepository persists invites. Invites are never deleted.
type InviteRepository interface {
	CreateInvite(ctx context.Context, invite *models.PortalInvite) error
	GetInvite(ctx context.Context, organizationID, id string) (*models.PortalInvite, error)
	ListInvites(ctx context.Context, organizationID string, filter InviteFilter, page Pagination) ([]models.PortalInvite, int64, error)
	// FindLatestInvite returns the newest unexpired pending invite for the email,
	// falling back to the newest blocked one.
	FindLatestInvite(ctx context.Context, organizationID, emailNormalized string, projectID *string, now time.Time) (*models.PortalInvite, error)
	// RegisterFailedAttempt atomically increments the attempt counter of a
	// pending invite and blocks it once the counter reaches max attempts.
	// blocked reports whether this call performed the transition.
	RegisterFailedAttempt(ctx context.Context, id string) (invite *models.PortalInvite, blocked bool, err error)
	TransitionInvite(ctx context.Context, id string, t InviteTransition) (bool, error)
	ExpireInvites(ctx context.Context, now time.Time) (int64, error)
	UsedInvitesWithoutAccount(ctx context.Context, usedBefore time.Time) ([]models.PortalInvite, error)
}

type AccountRepository interface {
	GetAccount(ctx context.Context, organizationID, id string) (*models.PortalAccount, error)
	// ListAccountsByExternalUser returns accounts oldest first, optionally scoped to an organization.
	ListAccountsByExternalUser(ctx context.Context, externalUserID, organizationID string) ([]models.PortalAccount, error)
	// UpsertAccount creates or updates the account keyed by organization and external user id.
	UpsertAccount(ctx context.Context, account *models.PortalAccount) error
	SetAccountStatus(ctx context.Context, organizationID, id string, status models.AccountStatus) (*models.PortalAccount, error)
	TouchAccountLogin(ctx context.Context, id string, at time.Time) error

	GetMembership(ctx context.Context, accountID, projectID string) (*models.PortalMembership, error)
	GetMembershipByID(ctx context.Context, organizationID, id string) (*models.PortalMembership, error)
	ListMemberships(ctx context.Context, accountID string) ([]models.PortalMembership, error)
	// UpsertMembership creates or updates the membership keyed by account and project.
	UpsertMembership(ctx context.Context, membership *models.PortalMembership) error
	SaveMembership(ctx context.Context, membership *models.PortalMembership) error
}

type CatalogRepository interface {
	GetProperty(ctx context.Context, organizationID, id string) (*models.Property, error)
	ListProperties(ctx context.Context, organizationID string, ids []string) ([]models.Property, error)
	ListContentBlocks(ctx context.Context, projectID string) ([]models.ProjectContentBlock, error)
	ListDocuments(ctx context.Context, projectID string) ([]models.ProjectDocument, error)
}

type ContactRepository interface {
	FindContactByEmail(ctx context.Context, organizationID, emailNormalized string) (*models.Contact, error)
	FindContactByPhone(ctx context.Context, organizationID, phoneNormalized string) (*models.Contact, error)
	GetContact(ctx context.Context, organizationID, id string) (*models.Contact, error)
	CreateContact(ctx context.Context, contact *models.Contact) error
	FindClientByContact(ctx context.Context, organizationID, contactID string) (*models.Client, error)
	FindAgencyByContact(ctx context.Context, organizationID, contactID string) (*models.Agency, error)
	GetAgency(ctx context.Context, organizationID, id string) (*models.Agency, error)
}

type LeadRepository interface {
	// FindFirstLead returns the oldest lead for the organization, project and contact triple.
	FindFirstLead(ctx context.Context, organizationID, projectID, contactID string) (*models.Lead, error)
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, organizationID, id string) (*models.Lead, error)
	ListLeadsByIDs(ctx context.Context, organizationID string, ids []string) ([]models.Lead, error)
	CreateTracking(ctx context.Context, tracking *models.LeadTracking) error
	GetTrackingByLead(ctx context.Context, leadID string) (*models.LeadTracking, error)
	ListTrackingForAccount(ctx context.Context, accountID string, filter LeadFilter, page Pagination) ([]models.LeadTracking, int64, error)

	CreateVisit(ctx context.Context, visit *models.VisitRequest) error
	GetVisit(ctx context.Context, organizationID, id string) (*models.VisitRequest, error)
	SaveVisit(ctx context.Context, visit *models.VisitRequest) error
	ListVisitsByLead(ctx context.Context, leadID string) ([]models.VisitRequest, error)

	ListCommissions(ctx context.Context, accountID string, filter CommissionFilter, page Pagination) ([]models.Commission, int64, error)
}

type AccessLogRepository interface {
	AppendAccessLog(ctx context.Context, entry *models.PortalAccessLog) error
	ListAccessLogs(ctx context.Context, filter AccessLogFilter, page Pagination) ([]models.PortalAccessLog, int64, error)
}

// Store aggregates every repository and adds transactional scoping.
type Store interface {
	InviteRepository
	AccountRepository
	CatalogRepository
	ContactRepository
	LeadRepository
	AccessLogRepository

	// Transaction runs fn against a Store bound to a single database
	// transaction. Returning an error rolls the transaction back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
