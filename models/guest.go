package models

import (
	"time"
)

// Guest is deduplicated per hotel by phone number: re-checking-in the same
// phone upserts this row instead of creating a duplicate. It holds only the
// latest snapshot; historical attestations keep their own frozen copies.
type Guest struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	HotelID uint   `gorm:"uniqueIndex:idx_guests_hotel_phone;column:hotel_id" json:"hotelId"`
	Phone   string `gorm:"uniqueIndex:idx_guests_hotel_phone;size:32" json:"phone"`

	FullName      string `gorm:"size:255" json:"fullName"`
	LicenseNumber string `gorm:"size:64" json:"licenseNumber,omitempty"`
	LicenseState  string `gorm:"size:8" json:"licenseState,omitempty"`
}
