package models

import (
	"time"

	"gorm.io/datatypes"
)

// PortalInvite is a single-use, time-boxed authorization to create or extend a
// portal account. Only the salted hash and the last four characters of the
// code are stored.
type PortalInvite struct {
	BaseModel

	OrganizationID  string            `gorm:"type:uuid;not null;index:idx_portal_invite_lookup,priority:1" json:"organization_id"`
	Email           string            `gorm:"not null" json:"email"`
	EmailNormalized string            `gorm:"not null;index:idx_portal_invite_lookup,priority:2" json:"email_normalized"`
	InviteType      InviteType        `gorm:"size:16;not null" json:"invite_type"`
	Role            PortalRole        `gorm:"size:32;not null" json:"role"`
	ProjectID       *string           `gorm:"type:uuid;index" json:"project_id,omitempty"`
	CodeSalt        string            `gorm:"not null" json:"-"`
	CodeHash        string            `gorm:"not null" json:"-"`
	CodeLast4       string            `gorm:"size:4;not null" json:"code_last4"`
	Status          InviteStatus      `gorm:"size:16;not null;index" json:"status"`
	ExpiresAt       time.Time         `gorm:"index" json:"expires_at"`
	MaxAttempts     int               `gorm:"not null;default:5" json:"max_attempts"`
	Attempts        int               `gorm:"not null;default:0" json:"attempts"`
	UsedAt          *time.Time        `json:"used_at,omitempty"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedBy       string            `json:"created_by,omitempty"`
}

// RemainingAttempts never reports a negative count.
func (i *PortalInvite) RemainingAttempts() int {
	if remaining := i.MaxAttempts - i.Attempts; remaining > 0 {
		return remaining
	}
	return 0
}

// Expired reports whether the invite expiry has passed at now.
func (i *PortalInvite) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
