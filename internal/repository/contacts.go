package repository

import (
	"context"

	"github.com/charlesng35/estateportal/internal/models"
)

// FindContactByEmail returns the oldest contact with the normalized email.
func (s *GormStore) FindContactByEmail(ctx context.Context, organizationID, emailNormalized string) (*models.Contact, error) {
	if emailNormalized == "" {
		return nil, ErrNotFound
	}
	var contact models.Contact
	err := s.conn(ctx).
		Where("organization_id = ? AND email_normalized = ?", organizationID, emailNormalized).
		Order("created_at ASC").
		Take(&contact).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

func (s *GormStore) FindContactByPhone(ctx context.Context, organizationID, phoneNormalized string) (*models.Contact, error) {
	if phoneNormalized == "" {
		return nil, ErrNotFound
	}
	var contact models.Contact
	err := s.conn(ctx).
		Where("organization_id = ? AND phone_normalized = ?", organizationID, phoneNormalized).
		Order("created_at ASC").
		Take(&contact).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

func (s *GormStore) GetContact(ctx context.Context, organizationID, id string) (*models.Contact, error) {
	var contact models.Contact
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&contact).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

func (s *GormStore) CreateContact(ctx context.Context, contact *models.Contact) error {
	contact.EmailNormalized = models.NormalizeEmail(contact.Email)
	contact.PhoneNormalized = models.NormalizePhone(contact.Phone)
	return s.conn(ctx).Create(contact).Error
}

func (s *GormStore) FindClientByContact(ctx context.Context, organizationID, contactID string) (*models.Client, error) {
	var client models.Client
	err := s.conn(ctx).
		Where("organization_id = ? AND contact_id = ?", organizationID, contactID).
		Order("created_at ASC").
		Take(&client).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &client, nil
}

func (s *GormStore) FindAgencyByContact(ctx context.Context, organizationID, contactID string) (*models.Agency, error) {
	var agency models.Agency
	err := s.conn(ctx).
		Where("organization_id = ? AND contact_id = ?", organizationID, contactID).
		Order("created_at ASC").
		Take(&agency).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &agency, nil
}

func (s *GormStore) GetAgency(ctx context.Context, organizationID, id string) (*models.Agency, error) {
	var agency models.Agency
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&agency).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &agency, nil
}
