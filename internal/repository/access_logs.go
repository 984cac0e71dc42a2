package repository

import (
	"context"

	"github.com/charlesng35/estateportal/internal/models"
)

func (s *GormStore) AppendAccessLog(ctx context.Context, entry *models.PortalAccessLog) error {
	return s.conn(ctx).Create(entry).Error
}

// ListAccessLogs returns entries newest first.
func (s *GormStore) ListAccessLogs(ctx context.Context, filter AccessLogFilter, page Pagination) ([]models.PortalAccessLog, int64, error) {
	page = page.Normalize()

	query := s.conn(ctx).Model(&models.PortalAccessLog{})
	if filter.OrganizationID != "" {
		query = query.Where("organization_id = ?", filter.OrganizationID)
	}
	if filter.PortalAccountID != "" {
		query = query.Where("portal_account_id = ?", filter.PortalAccountID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if email := models.NormalizeEmail(filter.Email); email != "" {
		query = query.Where("email = ?", email)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", filter.Since.UTC())
	}
	if filter.Until != nil {
		query = query.Where("created_at <= ?", filter.Until.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.PortalAccessLog
	err := query.
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
