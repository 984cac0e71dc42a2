package repository

import (
	"context"

	"github.com/charlesng35/estateportal/internal/models"
)

func (s *GormStore) FindFirstLead(ctx context.Context, organizationID, projectID, contactID string) (*models.Lead, error) {
	var lead models.Lead
	err := s.conn(ctx).
		Where("organization_id = ? AND project_id = ? AND contact_id = ?", organizationID, projectID, contactID).
		Order("created_at ASC").
		Order("id ASC").
		Take(&lead).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &lead, nil
}

func (s *GormStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	return s.conn(ctx).Create(lead).Error
}

func (s *GormStore) GetLead(ctx context.Context, organizationID, id string) (*models.Lead, error) {
	var lead models.Lead
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&lead).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &lead, nil
}

func (s *GormStore) ListLeadsByIDs(ctx context.Context, organizationID string, ids []string) ([]models.Lead, error) {
	if len(ids) == 0 {
		return []models.Lead{}, nil
	}
	var leads []models.Lead
	err := s.conn(ctx).
		Where("organization_id = ? AND id IN ?", organizationID, ids).
		Find(&leads).Error
	return leads, err
}

func (s *GormStore) CreateTracking(ctx context.Context, tracking *models.LeadTracking) error {
	return s.conn(ctx).Create(tracking).Error
}

func (s *GormStore) GetTrackingByLead(ctx context.Context, leadID string) (*models.LeadTracking, error) {
	var tracking models.LeadTracking
	if err := s.conn(ctx).Where("lead_id = ?", leadID).Take(&tracking).Error; err != nil {
		return nil, notFound(err)
	}
	return &tracking, nil
}

// ListTrackingForAccount returns the account's tracked leads, newest first.
func (s *GormStore) ListTrackingForAccount(ctx context.Context, accountID string, filter LeadFilter, page Pagination) ([]models.LeadTracking, int64, error) {
	page = page.Normalize()

	query := s.conn(ctx).Model(&models.LeadTracking{}).Where("portal_account_id = ?", accountID)
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.AttributionStatus != "" {
		query = query.Where("attribution_status = ?", filter.AttributionStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.LeadTracking
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *GormStore) CreateVisit(ctx context.Context, visit *models.VisitRequest) error {
	return s.conn(ctx).Create(visit).Error
}

func (s *GormStore) GetVisit(ctx context.Context, organizationID, id string) (*models.VisitRequest, error) {
	var visit models.VisitRequest
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&visit).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &visit, nil
}

func (s *GormStore) SaveVisit(ctx context.Context, visit *models.VisitRequest) error {
	return s.conn(ctx).Save(visit).Error
}

func (s *GormStore) ListVisitsByLead(ctx context.Context, leadID string) ([]models.VisitRequest, error) {
	var visits []models.VisitRequest
	err := s.conn(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Find(&visits).Error
	return visits, err
}

// ListCommissions returns commissions owed to the account, newest first.
func (s *GormStore) ListCommissions(ctx context.Context, accountID string, filter CommissionFilter, page Pagination) ([]models.Commission, int64, error) {
	page = page.Normalize()

	query := s.conn(ctx).Model(&models.Commission{}).Where("portal_account_id = ?", accountID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.LeadID != "" {
		query = query.Where("lead_id = ?", filter.LeadID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var commissions []models.Commission
	err := query.
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&commissions).Error
	if err != nil {
		return nil, 0, err
	}
	return commissions, total, nil
}
