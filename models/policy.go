package models

import (
	"time"

	"gorm.io/gorm"
)

// Policy is a versioned consent policy template. The staff check-in form
// starts from the latest template; the attestation row keeps its own copy of
// whatever text was actually shown.
type Policy struct {
	ID            uint           `gorm:"primaryKey;autoIncrement;column:policy_id" json:"id"`
	Slug          string         `gorm:"size:128;index" json:"slug"`
	Title         string         `gorm:"size:255" json:"title"`
	Body          string         `gorm:"type:text" json:"body"`
	EffectiveFrom *time.Time     `json:"effective_from"`
	Version       string         `gorm:"size:16" json:"version"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}
