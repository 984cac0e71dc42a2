package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/models"
)

func (s *GormStore) GetAccount(ctx context.Context, organizationID, id string) (*models.PortalAccount, error) {
	var account models.PortalAccount
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (s *GormStore) ListAccountsByExternalUser(ctx context.Context, externalUserID, organizationID string) ([]models.PortalAccount, error) {
	query := s.conn(ctx).Where("external_user_id = ?", externalUserID)
	if organizationID != "" {
		query = query.Where("organization_id = ?", organizationID)
	}

	var accounts []models.PortalAccount
	err := query.Order("created_at ASC").Order("id ASC").Find(&accounts).Error
	return accounts, err
}

// UpsertAccount writes the account keyed by (organization, external user id).
// A concurrent insert of the same key is resolved by retrying as an update.
// The insert runs under a savepoint so the retry works inside a Postgres
// transaction, which otherwise aborts on the first failed statement.
func (s *GormStore) UpsertAccount(ctx context.Context, account *models.PortalAccount) error {
	for attempt := 0; attempt < 2; attempt++ {
		var existing models.PortalAccount
		err := s.conn(ctx).
			Where("organization_id = ? AND external_user_id = ?", account.OrganizationID, account.ExternalUserID).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			account.ID = ""
			createErr := s.createIsolated(ctx, func(tx *gorm.DB) error {
				return tx.Omit("Memberships").Create(account).Error
			})
			if createErr == nil {
				return nil
			}
			if !IsUniqueViolation(createErr) {
				return createErr
			}
			continue
		case err != nil:
			return err
		}

		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
		if account.LastLoginAt == nil {
			account.LastLoginAt = existing.LastLoginAt
		}
		return s.conn(ctx).Omit("Memberships").Save(account).Error
	}
	return errors.New("repository: account upsert did not converge")
}

func (s *GormStore) SetAccountStatus(ctx context.Context, organizationID, id string, status models.AccountStatus) (*models.PortalAccount, error) {
	res := s.conn(ctx).Model(&models.PortalAccount{}).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetAccount(ctx, organizationID, id)
}

func (s *GormStore) TouchAccountLogin(ctx context.Context, id string, at time.Time) error {
	return s.conn(ctx).Model(&models.PortalAccount{}).
		Where("id = ?", id).
		Update("last_login_at", at.UTC()).Error
}

func (s *GormStore) GetMembership(ctx context.Context, accountID, projectID string) (*models.PortalMembership, error) {
	var membership models.PortalMembership
	err := s.conn(ctx).
		Where("portal_account_id = ? AND project_id = ?", accountID, projectID).
		Take(&membership).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &membership, nil
}

func (s *GormStore) GetMembershipByID(ctx context.Context, organizationID, id string) (*models.PortalMembership, error) {
	var membership models.PortalMembership
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&membership).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &membership, nil
}

func (s *GormStore) ListMemberships(ctx context.Context, accountID string) ([]models.PortalMembership, error) {
	var memberships []models.PortalMembership
	err := s.conn(ctx).
		Where("portal_account_id = ?", accountID).
		Order("created_at ASC").
		Find(&memberships).Error
	return memberships, err
}

// UpsertMembership writes the membership keyed by (account, project), with
// the same savepoint-guarded retry as UpsertAccount.
func (s *GormStore) UpsertMembership(ctx context.Context, membership *models.PortalMembership) error {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.GetMembership(ctx, membership.PortalAccountID, membership.ProjectID)
		switch {
		case errors.Is(err, ErrNotFound):
			membership.ID = ""
			createErr := s.createIsolated(ctx, func(tx *gorm.DB) error {
				return tx.Create(membership).Error
			})
			if createErr == nil {
				return nil
			}
			if !IsUniqueViolation(createErr) {
				return createErr
			}
			continue
		case err != nil:
			return err
		}

		membership.ID = existing.ID
		membership.CreatedAt = existing.CreatedAt
		return s.SaveMembership(ctx, membership)
	}
	return errors.New("repository: membership upsert did not converge")
}

func (s *GormStore) SaveMembership(ctx context.Context, membership *models.PortalMembership) error {
	return s.conn(ctx).Save(membership).Error
}
