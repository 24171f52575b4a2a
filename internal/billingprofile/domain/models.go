package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Profile is the user's current legal billing identity.
type Profile struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID `gorm:"not null;uniqueIndex" json:"user_id"`
	LegalName    string       `gorm:"type:text" json:"legal_name"`
	Email        string       `gorm:"type:text" json:"email"`
	AddressLine1 string       `gorm:"type:text" json:"address_line1"`
	AddressLine2 string       `gorm:"type:text" json:"address_line2"`
	City         string       `gorm:"type:text" json:"city"`
	PostalCode   string       `gorm:"type:text" json:"postal_code"`
	Region       string       `gorm:"type:text" json:"region"`
	Country      string       `gorm:"type:text" json:"country"`
	TaxID        string       `gorm:"type:text" json:"tax_id"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Profile) TableName() string { return "billing_profiles" }
