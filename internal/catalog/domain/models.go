// Package domain contains catalog models that the commerce engine prices and gates.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Audiobook is the purchasable unit of content.
type Audiobook struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Title      string       `gorm:"type:text;not null" json:"title"`
	Author     string       `gorm:"type:text" json:"author"`
	PriceCents int64        `gorm:"not null;default:0" json:"price_cents"`
	Currency   string       `gorm:"type:text;not null" json:"currency"`
	IsFree     bool         `gorm:"not null;default:false" json:"is_free"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Audiobook) TableName() string { return "audiobooks" }

// Chapter is a playable sub-unit of an audiobook.
type Chapter struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	AudiobookID snowflake.ID `gorm:"not null;index" json:"audiobook_id"`
	Title       string       `gorm:"type:text;not null" json:"title"`
	Position    int          `gorm:"not null;default:0" json:"position"`
	IsSample    bool         `gorm:"not null;default:false" json:"is_sample"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Chapter) TableName() string { return "chapters" }
