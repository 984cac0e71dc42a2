package services

import (
	"context"
	"errors"
	"strings"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
)

type CommissionListOptions struct {
	Status    models.CommissionStatus
	ProjectID string
	Page      int
	PerPage   int
}

type CommissionListResult struct {
	Commissions []models.Commission
	Total       int64
	Page        int
	PerPage     int
}

// CommissionService exposes the caller's commissions read-only.
type CommissionService struct {
	store repository.LeadRepository
}

func NewCommissionService(store repository.LeadRepository) (*CommissionService, error) {
	if store == nil {
		return nil, errors.New("commission service: store is required")
	}
	return &CommissionService{store: store}, nil
}

// ListCommissions never returns rows belonging to another account.
func (s *CommissionService) ListCommissions(ctx context.Context, authCtx *AuthContext, opts CommissionListOptions) (*CommissionListResult, error) {
	account, err := requireAccount(authCtx)
	if err != nil {
		return nil, err
	}

	page := pageOf(opts.Page, opts.PerPage)
	rows, total, err := s.store.ListCommissions(ctx, account.ID, repository.CommissionFilter{
		Status:    opts.Status,
		ProjectID: strings.TrimSpace(opts.ProjectID),
	}, page)
	if err != nil {
		return nil, dbError("commission_list", err)
	}
	return &CommissionListResult{Commissions: rows, Total: total, Page: page.Page, PerPage: page.PerPage}, nil
}
