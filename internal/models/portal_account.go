package models

import (
	"time"

	"gorm.io/datatypes"
)

// PortalAccount links an external identity to an organization, role and the
// optional commercial relationships discovered at activation.
type PortalAccount struct {
	BaseModel

	OrganizationID string            `gorm:"type:uuid;not null;uniqueIndex:idx_portal_account_identity,priority:1" json:"organization_id"`
	ExternalUserID string            `gorm:"not null;uniqueIndex:idx_portal_account_identity,priority:2;index" json:"external_user_id"`
	Email          string            `gorm:"index" json:"email"`
	FullName       string            `json:"full_name"`
	Role           PortalRole        `gorm:"size:32;not null" json:"role"`
	Status         AccountStatus     `gorm:"size:16;not null;index" json:"status"`
	ContactID      *string           `gorm:"type:uuid" json:"contact_id,omitempty"`
	ClientID       *string           `gorm:"type:uuid" json:"client_id,omitempty"`
	AgencyID       *string           `gorm:"type:uuid" json:"agency_id,omitempty"`
	LastLoginAt    *time.Time        `json:"last_login_at,omitempty"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`

	Memberships []PortalMembership `gorm:"foreignKey:PortalAccountID" json:"memberships,omitempty"`
}

// PortalMembership grants a portal account an access scope on one project.
type PortalMembership struct {
	BaseModel

	OrganizationID     string           `gorm:"type:uuid;not null;index" json:"organization_id"`
	PortalAccountID    string           `gorm:"type:uuid;not null;uniqueIndex:idx_membership_account_project,priority:1" json:"portal_account_id"`
	ProjectID          string           `gorm:"type:uuid;not null;uniqueIndex:idx_membership_account_project,priority:2;index" json:"project_id"`
	AccessScope        AccessScope      `gorm:"size:16;not null" json:"access_scope"`
	Status             MembershipStatus `gorm:"size:16;not null" json:"status"`
	DisputeWindowHours int              `gorm:"not null;default:48" json:"dispute_window_hours"`
	GrantedBy          string           `json:"granted_by,omitempty"`
	RevokedAt          *time.Time       `json:"revoked_at,omitempty"`
}

const (
	DefaultDisputeWindowHours = 48
	MinDisputeWindowHours     = 24
	MaxDisputeWindowHours     = 72
)

// ClampDisputeWindow bounds a dispute window to the supported range, using the
// default for zero.
func ClampDisputeWindow(hours int) int {
	switch {
	case hours == 0:
		return DefaultDisputeWindowHours
	case hours < MinDisputeWindowHours:
		return MinDisputeWindowHours
	case hours > MaxDisputeWindowHours:
		return MaxDisputeWindowHours
	}
	return hours
}
