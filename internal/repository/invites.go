package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/models"
)

func (s *GormStore) CreateInvite(ctx context.Context, invite *models.PortalInvite) error {
	return s.conn(ctx).Create(invite).Error
}

func (s *GormStore) GetInvite(ctx context.Context, organizationID, id string) (*models.PortalInvite, error) {
	var invite models.PortalInvite
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&invite).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &invite, nil
}

func (s *GormStore) ListInvites(ctx context.Context, organizationID string, filter InviteFilter, page Pagination) ([]models.PortalInvite, int64, error) {
	page = page.Normalize()

	query := s.conn(ctx).Model(&models.PortalInvite{}).Where("organization_id = ?", organizationID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if email := models.NormalizeEmail(filter.Email); email != "" {
		query = query.Where("email_normalized = ?", email)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invites []models.PortalInvite
	err := query.
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&invites).Error
	if err != nil {
		return nil, 0, err
	}
	return invites, total, nil
}

func (s *GormStore) FindLatestInvite(ctx context.Context, organizationID, emailNormalized string, projectID *string, now time.Time) (*models.PortalInvite, error) {
	// A pending invite wins over any blocked one; blocked rows are only
	// reported when nothing redeemable is left.
	invite, err := s.latestInviteWithStatus(ctx, organizationID, emailNormalized, projectID, now, models.InviteStatusPending)
	if errors.Is(err, ErrNotFound) {
		return s.latestInviteWithStatus(ctx, organizationID, emailNormalized, projectID, now, models.InviteStatusBlocked)
	}
	return invite, err
}

func (s *GormStore) latestInviteWithStatus(ctx context.Context, organizationID, emailNormalized string, projectID *string, now time.Time, status models.InviteStatus) (*models.PortalInvite, error) {
	query := s.conn(ctx).
		Where("organization_id = ? AND email_normalized = ?", organizationID, emailNormalized).
		Where("status = ?", status).
		Where("expires_at > ?", now.UTC())
	if projectID != nil && *projectID != "" {
		query = query.Where("project_id = ?", *projectID)
	}

	var invite models.PortalInvite
	if err := query.Order("created_at DESC").Order("id DESC").Take(&invite).Error; err != nil {
		return nil, notFound(err)
	}
	return &invite, nil
}

func (s *GormStore) RegisterFailedAttempt(ctx context.Context, id string) (*models.PortalInvite, bool, error) {
	var (
		invite  models.PortalInvite
		blocked bool
	)
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.PortalInvite{}).
			Where("id = ? AND status = ?", id, models.InviteStatusPending).
			Update("attempts", gorm.Expr("attempts + 1")).Error
		if err != nil {
			return err
		}

		res := tx.Model(&models.PortalInvite{}).
			Where("id = ? AND status = ? AND attempts >= max_attempts", id, models.InviteStatusPending).
			Update("status", models.InviteStatusBlocked)
		if res.Error != nil {
			return res.Error
		}
		blocked = res.RowsAffected == 1

		return tx.Where("id = ?", id).Take(&invite).Error
	})
	if err != nil {
		return nil, false, notFound(err)
	}
	return &invite, blocked, nil
}

func (s *GormStore) TransitionInvite(ctx context.Context, id string, t InviteTransition) (bool, error) {
	var applied bool
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.PortalInvite
		if err := tx.Where("id = ?", id).Take(&invite).Error; err != nil {
			return err
		}

		updates := map[string]any{"status": t.To}
		if t.UsedAt != nil {
			updates["used_at"] = t.UsedAt.UTC()
		}
		if len(t.Metadata) > 0 {
			merged := datatypes.JSONMap{}
			for k, v := range invite.Metadata {
				merged[k] = v
			}
			for k, v := range t.Metadata {
				merged[k] = v
			}
			updates["metadata"] = merged
		}

		query := tx.Model(&models.PortalInvite{}).Where("id = ?", id)
		if len(t.From) > 0 {
			query = query.Where("status IN ?", t.From)
		}
		res := query.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, notFound(err)
	}
	return applied, nil
}

func (s *GormStore) ExpireInvites(ctx context.Context, now time.Time) (int64, error) {
	res := s.conn(ctx).Model(&models.PortalInvite{}).
		Where("status = ? AND expires_at <= ?", models.InviteStatusPending, now.UTC()).
		Update("status", models.InviteStatusExpired)
	return res.RowsAffected, res.Error
}

func (s *GormStore) UsedInvitesWithoutAccount(ctx context.Context, usedBefore time.Time) ([]models.PortalInvite, error) {
	var invites []models.PortalInvite
	err := s.conn(ctx).
		Where("status = ? AND used_at <= ?", models.InviteStatusUsed, usedBefore.UTC()).
		Where("NOT EXISTS (SELECT 1 FROM portal_accounts pa WHERE pa.organization_id = portal_invites.organization_id AND LOWER(pa.email) = portal_invites.email_normalized)").
		Order("used_at ASC").
		Find(&invites).Error
	return invites, err
}
