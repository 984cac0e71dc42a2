package models

import "gorm.io/datatypes"

// Property is a CRM catalog record. Top-level promotions have record type
// "project"; units hang off a project through ParentID.
type Property struct {
	BaseModel

	OrganizationID string            `gorm:"type:uuid;not null;index" json:"organization_id"`
	RecordType     RecordType        `gorm:"size:16;not null;index" json:"record_type"`
	ParentID       *string           `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Name           string            `gorm:"not null" json:"name"`
	Slug           string            `gorm:"index" json:"slug,omitempty"`
	Attributes     datatypes.JSONMap `json:"attributes,omitempty"`
}

// PortalPublished reports the portal_enabled flag. An unset flag counts as
// published; only an explicit false hides the project.
func (p *Property) PortalPublished() bool {
	if p == nil || p.Attributes == nil {
		return true
	}
	raw, ok := p.Attributes["portal_enabled"]
	if !ok || raw == nil {
		return true
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return v != "false" && v != "0"
	case float64:
		return v != 0
	}
	return true
}

// ProjectContentBlock is a piece of marketing copy scoped to an audience.
type ProjectContentBlock struct {
	BaseModel

	OrganizationID string          `gorm:"type:uuid;not null;index" json:"organization_id"`
	ProjectID      string          `gorm:"type:uuid;not null;index" json:"project_id"`
	Audience       ContentAudience `gorm:"size:16;not null" json:"audience"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	SortOrder      int             `json:"sort_order"`
}

// ProjectDocument is a downloadable asset scoped by visibility.
type ProjectDocument struct {
	BaseModel

	OrganizationID string             `gorm:"type:uuid;not null;index" json:"organization_id"`
	ProjectID      string             `gorm:"type:uuid;not null;index" json:"project_id"`
	Visibility     DocumentVisibility `gorm:"size:16;not null" json:"visibility"`
	Title          string             `json:"title"`
	URL            string             `json:"url"`
	MimeType       string             `json:"mime_type,omitempty"`
}

// Contact is the CRM person record. Email and phone are stored alongside
// normalized copies used for exact-match lookups.
type Contact struct {
	BaseModel

	OrganizationID  string      `gorm:"type:uuid;not null;index:idx_contact_email,priority:1;index:idx_contact_phone,priority:1" json:"organization_id"`
	FullName        string      `json:"full_name"`
	Email           string      `json:"email,omitempty"`
	EmailNormalized string      `gorm:"index:idx_contact_email,priority:2" json:"-"`
	Phone           string      `json:"phone,omitempty"`
	PhoneNormalized string      `gorm:"index:idx_contact_phone,priority:2" json:"-"`
	ContactType     ContactType `gorm:"size:16;not null" json:"contact_type"`
}

// Client is a buyer relationship, optionally introduced by an agency.
type Client struct {
	BaseModel

	OrganizationID string  `gorm:"type:uuid;not null;index" json:"organization_id"`
	ContactID      string  `gorm:"type:uuid;not null;index" json:"contact_id"`
	AgencyID       *string `gorm:"type:uuid;index" json:"agency_id,omitempty"`
}

// Agency is a referring real-estate agency.
type Agency struct {
	BaseModel

	OrganizationID string  `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string  `json:"name"`
	ContactID      *string `gorm:"type:uuid;index" json:"contact_id,omitempty"`
}
