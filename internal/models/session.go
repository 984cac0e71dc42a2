package models

import (
	"time"

	"gorm.io/gorm"
)

// IdentityUser is the credential row kept by the local credential store. Its
// ID is the external user id referenced by portal accounts.
type IdentityUser struct {
	BaseModel

	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Disabled     bool       `gorm:"default:false" json:"disabled"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Session is a refresh-token session issued by the local credential store.
type Session struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string     `gorm:"type:uuid;not null;index" json:"user_id"`
	RefreshToken string     `gorm:"uniqueIndex;not null" json:"-"`
	IPAddress    string     `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`
	LastUsedAt   time.Time  `json:"last_used_at"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}
