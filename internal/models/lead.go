package models

import (
	"time"

	"gorm.io/datatypes"
)

// Lead is the CRM sales-pipeline entity. The portal creates rows with source
// "portal" but never owns their later lifecycle.
type Lead struct {
	BaseModel

	OrganizationID  string     `gorm:"type:uuid;not null;index:idx_lead_triple,priority:1" json:"organization_id"`
	ProjectID       string     `gorm:"type:uuid;not null;index:idx_lead_triple,priority:2" json:"project_id"`
	ContactID       string     `gorm:"type:uuid;not null;index:idx_lead_triple,priority:3" json:"contact_id"`
	Status          LeadStatus `gorm:"size:24;not null" json:"status"`
	DiscardedReason string     `json:"discarded_reason,omitempty"`
	Source          string     `gorm:"size:32" json:"source"`
	Message         string     `json:"message,omitempty"`
	PortalAccountID *string    `gorm:"type:uuid;index" json:"portal_account_id,omitempty"`
}

// TimelineEntry is one step in the attribution history of a tracked lead.
type TimelineEntry struct {
	At     time.Time `json:"at"`
	Status string    `json:"status"`
	Actor  string    `json:"actor"`
	Note   string    `json:"note,omitempty"`
}

// LeadTracking is the portal-owned attribution record for a submitted lead.
type LeadTracking struct {
	BaseModel

	LeadID            string                             `gorm:"type:uuid;not null;uniqueIndex" json:"lead_id"`
	OrganizationID    string                             `gorm:"type:uuid;not null;index" json:"organization_id"`
	ProjectID         string                             `gorm:"type:uuid;not null;index" json:"project_id"`
	PortalAccountID   string                             `gorm:"type:uuid;not null;index" json:"portal_account_id"`
	AttributionStatus AttributionStatus                  `gorm:"size:24;not null;index" json:"attribution_status"`
	DuplicateOfLeadID *string                            `gorm:"type:uuid" json:"duplicate_of_lead_id,omitempty"`
	Evidence          datatypes.JSONMap                  `json:"evidence,omitempty"`
	Timeline          datatypes.JSONSlice[TimelineEntry] `json:"timeline"`
}

// VisitSlot is a proposed or confirmed viewing window.
type VisitSlot struct {
	Start time.Time  `json:"start" validate:"required"`
	End   *time.Time `json:"end,omitempty"`
}

// VisitRequest asks the sales team to arrange a viewing for a tracked lead.
type VisitRequest struct {
	BaseModel

	OrganizationID     string                         `gorm:"type:uuid;not null;index" json:"organization_id"`
	LeadID             string                         `gorm:"type:uuid;not null;index" json:"lead_id"`
	ProjectID          string                         `gorm:"type:uuid;not null;index" json:"project_id"`
	PortalAccountID    string                         `gorm:"type:uuid;not null;index" json:"portal_account_id"`
	RequestMode        VisitMode                      `gorm:"size:24;not null" json:"request_mode"`
	ProposedSlots      datatypes.JSONSlice[VisitSlot] `json:"proposed_slots"`
	Status             VisitStatus                    `gorm:"size:16;not null" json:"status"`
	ConfirmedSlotStart *time.Time                     `json:"confirmed_slot_start,omitempty"`
	ConfirmedSlotEnd   *time.Time                     `json:"confirmed_slot_end,omitempty"`
	Notes              string                         `json:"notes,omitempty"`
}

// Commission is a CRM projection of the fee owed for an attributed lead.
type Commission struct {
	BaseModel

	OrganizationID  string           `gorm:"type:uuid;not null;index" json:"organization_id"`
	PortalAccountID string           `gorm:"type:uuid;not null;index" json:"portal_account_id"`
	LeadID          *string          `gorm:"type:uuid;index" json:"lead_id,omitempty"`
	ProjectID       *string          `gorm:"type:uuid;index" json:"project_id,omitempty"`
	AmountCents     int64            `json:"amount_cents"`
	Currency        string           `gorm:"size:3" json:"currency"`
	Status          CommissionStatus `gorm:"size:16;not null;index" json:"status"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
}
