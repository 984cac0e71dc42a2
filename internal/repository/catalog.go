package repository

import (
	"context"

	"github.com/charlesng35/estateportal/internal/models"
)

func (s *GormStore) GetProperty(ctx context.Context, organizationID, id string) (*models.Property, error) {
	var property models.Property
	err := s.conn(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		Take(&property).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &property, nil
}

func (s *GormStore) ListProperties(ctx context.Context, organizationID string, ids []string) ([]models.Property, error) {
	if len(ids) == 0 {
		return []models.Property{}, nil
	}
	var properties []models.Property
	err := s.conn(ctx).
		Where("organization_id = ? AND id IN ?", organizationID, ids).
		Order("name ASC").
		Find(&properties).Error
	return properties, err
}

func (s *GormStore) ListContentBlocks(ctx context.Context, projectID string) ([]models.ProjectContentBlock, error) {
	var blocks []models.ProjectContentBlock
	err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&blocks).Error
	return blocks, err
}

func (s *GormStore) ListDocuments(ctx context.Context, projectID string) ([]models.ProjectDocument, error) {
	var documents []models.ProjectDocument
	err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&documents).Error
	return documents, err
}
