package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PortalAccessLog is an append-only fact about a portal interaction.
type PortalAccessLog struct {
	ID              string            `gorm:"primaryKey;type:uuid" json:"id"`
	OrganizationID  string            `gorm:"type:uuid;index" json:"organization_id"`
	PortalAccountID *string           `gorm:"type:uuid;index" json:"portal_account_id,omitempty"`
	LeadID          *string           `gorm:"type:uuid" json:"lead_id,omitempty"`
	ProjectID       *string           `gorm:"type:uuid" json:"project_id,omitempty"`
	Email           string            `gorm:"index" json:"email,omitempty"`
	EventType       AccessEventType   `gorm:"size:32;not null;index" json:"event_type"`
	IP              string            `json:"ip,omitempty"`
	UserAgent       string            `json:"user_agent,omitempty"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
}

func (l *PortalAccessLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = NewID()
	}
	return nil
}
