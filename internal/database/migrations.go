package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/estateportal/internal/models"
)

// PortalModels lists every table owned or read by the portal, in dependency order.
func PortalModels() []any {
	return []any{
		&models.Property{},
		&models.ProjectContentBlock{},
		&models.ProjectDocument{},
		&models.Contact{},
		&models.Agency{},
		&models.Client{},
		&models.PortalInvite{},
		&models.PortalAccount{},
		&models.PortalMembership{},
		&models.Lead{},
		&models.LeadTracking{},
		&models.VisitRequest{},
		&models.Commission{},
		&models.PortalAccessLog{},
		&models.IdentityUser{},
		&models.Session{},
		&models.CacheEntry{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PortalModels()...)
}

// SeedOptions controls optional demo data for local mode.
type SeedOptions struct {
	DemoOrganizationID string
}

// DemoProjectID is the fixed id of the seeded demo project.
const DemoProjectID = "7d4c5e0a-3f7e-4d55-9b1e-5a0d1c2f8e01"

// SeedData inserts a published demo project with audience-scoped content when
// a demo organization is configured. It is a no-op otherwise.
func SeedData(db *gorm.DB, opts SeedOptions) error {
	if opts.DemoOrganizationID == "" {
		return nil
	}

	project := models.Property{
		BaseModel:      models.BaseModel{ID: DemoProjectID},
		OrganizationID: opts.DemoOrganizationID,
		RecordType:     models.RecordTypeProject,
		Name:           "Demo Residences",
		Slug:           "demo-residences",
		Attributes:     datatypes.JSONMap{"portal_enabled": true},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&project).Error; err != nil {
		return err
	}

	blocks := []models.ProjectContentBlock{
		{OrganizationID: opts.DemoOrganizationID, ProjectID: DemoProjectID, Audience: models.AudienceBoth, Title: "Overview", Body: "Sea-view apartments with shared amenities.", SortOrder: 1},
		{OrganizationID: opts.DemoOrganizationID, ProjectID: DemoProjectID, Audience: models.AudienceAgent, Title: "Commission terms", Body: "3% on the net sale price.", SortOrder: 2},
	}
	var count int64
	if err := db.Model(&models.ProjectContentBlock{}).Where("project_id = ?", DemoProjectID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return db.Create(&blocks).Error
	}
	return nil
}
