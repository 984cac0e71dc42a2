package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
)

type VisitRequestInput struct {
	Mode          models.VisitMode
	ProposedSlots []models.VisitSlot
	Notes         string
	Meta          RequestMeta
}

// PatchVisitInput carries optional changes; nil fields are left untouched.
type PatchVisitInput struct {
	Status        *models.VisitStatus
	ConfirmedSlot *models.VisitSlot
	Notes         *string
	Meta          RequestMeta
}

// VisitService manages viewing requests on tracked leads.
type VisitService struct {
	store repository.Store
	gate  *MembershipGate
	audit *AccessLogService
}

func NewVisitService(store repository.Store, gate *MembershipGate, audit *AccessLogService) (*VisitService, error) {
	if store == nil {
		return nil, errors.New("visit service: store is required")
	}
	if gate == nil {
		return nil, errors.New("visit service: membership gate is required")
	}
	return &VisitService{store: store, gate: gate, audit: audit}, nil
}

// RequestVisit asks for a viewing on a lead the caller tracks. Proposal mode
// takes two or three candidate slots; direct booking takes exactly one.
func (s *VisitService) RequestVisit(ctx context.Context, authCtx *AuthContext, leadID string, in VisitRequestInput) (*models.VisitRequest, error) {
	account, err := requireAccount(authCtx)
	if err != nil {
		return nil, err
	}
	access, err := s.gate.AuthorizeLead(ctx, account, leadID)
	if err != nil {
		return nil, err
	}

	mode := in.Mode
	if mode == "" {
		mode = models.VisitModeProposalSlots
	}
	if !mode.Valid() {
		return nil, ErrInvalidRequestMode
	}

	slots := make([]models.VisitSlot, 0, len(in.ProposedSlots))
	for _, slot := range in.ProposedSlots {
		normalized, err := normalizeSlot(slot)
		if err != nil {
			return nil, err
		}
		slots = append(slots, normalized)
	}
	switch mode {
	case models.VisitModeProposalSlots:
		if len(slots) < 2 || len(slots) > 3 {
			return nil, ErrProposalSlotCount
		}
	case models.VisitModeDirectBooking:
		if len(slots) != 1 {
			return nil, ErrDirectBookingSlot
		}
	}

	visit := &models.VisitRequest{
		OrganizationID:  account.OrganizationID,
		LeadID:          access.Tracking.LeadID,
		ProjectID:       access.Tracking.ProjectID,
		PortalAccountID: account.ID,
		RequestMode:     mode,
		ProposedSlots:   datatypes.JSONSlice[models.VisitSlot](slots),
		Status:          models.VisitStatusRequested,
		Notes:           strings.TrimSpace(in.Notes),
	}
	if err := s.store.CreateVisit(ctx, visit); err != nil {
		return nil, dbError("visit_create", err)
	}

	s.audit.Record(ctx, AccessEvent{
		OrganizationID:  account.OrganizationID,
		PortalAccountID: account.ID,
		LeadID:          visit.LeadID,
		ProjectID:       visit.ProjectID,
		Email:           account.Email,
		EventType:       models.EventVisitRequested,
		IP:              in.Meta.IP,
		UserAgent:       in.Meta.UserAgent,
		Metadata:        map[string]any{"visit_id": visit.ID, "request_mode": string(mode), "slots": len(slots)},
	})
	return visit, nil
}

// PatchVisit updates a visit owned by the caller. Entering confirmed, done or
// no_show needs a confirmed slot, either in the patch or already stored.
func (s *VisitService) PatchVisit(ctx context.Context, authCtx *AuthContext, visitID string, in PatchVisitInput) (*models.VisitRequest, error) {
	account, err := requireAccount(authCtx)
	if err != nil {
		return nil, err
	}

	visit, err := s.store.GetVisit(ctx, account.OrganizationID, strings.TrimSpace(visitID))
	if isNotFound(err) {
		return nil, ErrVisitAccessDenied
	}
	if err != nil {
		return nil, dbError("visit_lookup", err)
	}
	if visit.PortalAccountID != account.ID {
		return nil, ErrVisitAccessDenied
	}
	// Membership, project publication and lead ownership are rechecked; any
	// denial collapses to the visit code.
	if _, err := s.gate.AuthorizeLead(ctx, account, visit.LeadID); err != nil {
		if errors.Is(err, ErrLeadAccessDenied) {
			return nil, ErrVisitAccessDenied
		}
		return nil, err
	}

	if in.ConfirmedSlot != nil {
		slot, err := normalizeSlot(*in.ConfirmedSlot)
		if err != nil {
			return nil, err
		}
		visit.ConfirmedSlotStart = &slot.Start
		visit.ConfirmedSlotEnd = slot.End
	}

	if in.Status != nil {
		status := *in.Status
		if !status.Valid() {
			return nil, ErrInvalidVisitStatus
		}
		if status.RequiresConfirmedSlot() && visit.ConfirmedSlotStart == nil {
			return nil, ErrConfirmedSlotRequired
		}
		visit.Status = status
	}
	if in.Notes != nil {
		visit.Notes = strings.TrimSpace(*in.Notes)
	}

	if err := s.store.SaveVisit(ctx, visit); err != nil {
		return nil, dbError("visit_update", err)
	}

	if in.Status != nil && in.Status.RequiresConfirmedSlot() {
		s.audit.Record(ctx, AccessEvent{
			OrganizationID:  account.OrganizationID,
			PortalAccountID: account.ID,
			LeadID:          visit.LeadID,
			ProjectID:       visit.ProjectID,
			Email:           account.Email,
			EventType:       models.EventVisitConfirmed,
			IP:              in.Meta.IP,
			UserAgent:       in.Meta.UserAgent,
			Metadata:        map[string]any{"visit_id": visit.ID, "status": string(visit.Status)},
		})
	}
	return visit, nil
}

func normalizeSlot(slot models.VisitSlot) (models.VisitSlot, error) {
	if slot.Start.IsZero() {
		return slot, ErrInvalidVisitSlot
	}
	slot.Start = slot.Start.UTC()
	if slot.End != nil {
		if !slot.End.After(slot.Start) {
			return slot, ErrInvalidVisitSlot
		}
		end := slot.End.UTC()
		slot.End = &end
	}
	return slot, nil
}
