package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
)

type GrantMembershipInput struct {
	OrganizationID     string
	AccountID          string
	ProjectID          string
	AccessScope        models.AccessScope
	DisputeWindowHours int
	GrantedBy          string
}

type UpdateMembershipInput struct {
	OrganizationID     string
	MembershipID       string
	AccessScope        *models.AccessScope
	Status             *models.MembershipStatus
	DisputeWindowHours *int
	Actor              string
}

// AdminService carries the administrative operations on accounts and memberships.
type AdminService struct {
	store repository.Store
	audit *AccessLogService
	now   func() time.Time
}

func NewAdminService(store repository.Store, audit *AccessLogService) (*AdminService, error) {
	if store == nil {
		return nil, errors.New("admin service: store is required")
	}
	return &AdminService{store: store, audit: audit, now: utcClock(nil)}, nil
}

// GrantMembership gives an account access to a project. The scope defaults to
// the account role's default scope; re-granting reactivates a revoked membership.
func (s *AdminService) GrantMembership(ctx context.Context, in GrantMembershipInput) (*models.PortalMembership, error) {
	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		return nil, ErrOrganizationRequired
	}

	account, err := s.getAccount(ctx, orgID, in.AccountID)
	if err != nil {
		return nil, err
	}
	project, err := requireTopLevelProject(ctx, s.store, orgID, strings.TrimSpace(in.ProjectID))
	if err != nil {
		return nil, err
	}

	scope := in.AccessScope
	if scope == "" {
		scope = account.Role.DefaultScope()
	}
	if !scope.Valid() {
		return nil, ErrInvalidAccessScope
	}

	membership := &models.PortalMembership{
		OrganizationID:     orgID,
		PortalAccountID:    account.ID,
		ProjectID:          project.ID,
		AccessScope:        scope,
		Status:             models.MembershipStatusActive,
		DisputeWindowHours: models.ClampDisputeWindow(in.DisputeWindowHours),
		GrantedBy:          strings.TrimSpace(in.GrantedBy),
	}
	if err := s.store.UpsertMembership(ctx, membership); err != nil {
		return nil, dbError("membership_upsert", err)
	}

	s.audit.Record(ctx, AccessEvent{
		OrganizationID:  orgID,
		PortalAccountID: account.ID,
		ProjectID:       project.ID,
		Email:           account.Email,
		EventType:       models.EventMembershipGranted,
		Metadata: map[string]any{
			"membership_id":        membership.ID,
			"access_scope":         string(scope),
			"dispute_window_hours": membership.DisputeWindowHours,
			"granted_by":           membership.GrantedBy,
		},
	})
	return membership, nil
}

// UpdateMembership changes scope, status or dispute window. Revoking stamps
// revoked_at; moving back to active or paused clears it.
func (s *AdminService) UpdateMembership(ctx context.Context, in UpdateMembershipInput) (*models.PortalMembership, error) {
	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		return nil, ErrOrganizationRequired
	}

	membership, err := s.store.GetMembershipByID(ctx, orgID, strings.TrimSpace(in.MembershipID))
	if isNotFound(err) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, dbError("membership_lookup", err)
	}

	changes := map[string]any{}
	if in.AccessScope != nil {
		if !in.AccessScope.Valid() {
			return nil, ErrInvalidAccessScope
		}
		membership.AccessScope = *in.AccessScope
		changes["access_scope"] = string(*in.AccessScope)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, ErrInvalidMembershipStatus
		}
		if *in.Status == models.MembershipStatusRevoked {
			if membership.Status != models.MembershipStatusRevoked {
				now := s.now()
				membership.RevokedAt = &now
			}
		} else {
			membership.RevokedAt = nil
		}
		membership.Status = *in.Status
		changes["status"] = string(*in.Status)
	}
	if in.DisputeWindowHours != nil {
		membership.DisputeWindowHours = models.ClampDisputeWindow(*in.DisputeWindowHours)
		changes["dispute_window_hours"] = membership.DisputeWindowHours
	}

	if err := s.store.SaveMembership(ctx, membership); err != nil {
		return nil, dbError("membership_update", err)
	}

	changes["membership_id"] = membership.ID
	changes["actor"] = strings.TrimSpace(in.Actor)
	s.audit.Record(ctx, AccessEvent{
		OrganizationID:  orgID,
		PortalAccountID: membership.PortalAccountID,
		ProjectID:       membership.ProjectID,
		EventType:       models.EventMembershipUpdated,
		Metadata:        changes,
	})
	return membership, nil
}

// SetAccountStatus moves an account between pending, active, blocked and revoked.
func (s *AdminService) SetAccountStatus(ctx context.Context, orgID, accountID string, status models.AccountStatus, actor string) (*models.PortalAccount, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, ErrOrganizationRequired
	}
	if !status.Valid() {
		return nil, ErrInvalidAccountStatus
	}

	current, err := s.getAccount(ctx, orgID, accountID)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.SetAccountStatus(ctx, orgID, current.ID, status)
	if isNotFound(err) {
		return nil, ErrAccountNotFoundAdmin
	}
	if err != nil {
		return nil, dbError("account_update", err)
	}

	s.audit.Record(ctx, AccessEvent{
		OrganizationID:  orgID,
		PortalAccountID: updated.ID,
		Email:           updated.Email,
		EventType:       models.EventAccountStatusChanged,
		Metadata: map[string]any{
			"from":  string(current.Status),
			"to":    string(status),
			"actor": strings.TrimSpace(actor),
		},
	})
	return updated, nil
}

func (s *AdminService) getAccount(ctx context.Context, orgID, accountID string) (*models.PortalAccount, error) {
	account, err := s.store.GetAccount(ctx, orgID, strings.TrimSpace(accountID))
	if isNotFound(err) {
		return nil, ErrAccountNotFoundAdmin
	}
	if err != nil {
		return nil, dbError("account_lookup", err)
	}
	return account, nil
}
