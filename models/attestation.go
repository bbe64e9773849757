package models

import (
	"time"

	"gorm.io/gorm"
)

// Attestation lifecycle. SENT is the only non-terminal state.
const (
	AttestationStatusSent     = "SENT"
	AttestationStatusVerified = "VERIFIED"
	AttestationStatusExpired  = "EXPIRED"
)

const (
	VerificationMethodCode = "code"
	VerificationMethodLink = "link"
)

type Attestation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	HotelID uint `gorm:"index;column:hotel_id" json:"hotelId"`
	GuestID uint `gorm:"index;column:guest_id" json:"guestId"`

	// Snapshot captured at creation. Later edits to the Guest row or to
	// policy templates never change what this guest saw and agreed to.
	GuestFullName string    `gorm:"size:255" json:"guestFullName"`
	GuestPhone    string    `gorm:"size:32" json:"guestPhone"`
	LicenseNumber string    `gorm:"size:64" json:"licenseNumber,omitempty"`
	LicenseState  string    `gorm:"size:8" json:"licenseState,omitempty"`
	CheckIn       time.Time `gorm:"column:check_in" json:"checkIn"`
	CheckOut      time.Time `gorm:"column:check_out" json:"checkOut"`
	CardLast4     string    `gorm:"size:4" json:"cardLast4"`
	PolicyText    string    `gorm:"type:text" json:"-"`

	// CodeHash/CodeSalt are written once at creation and never after.
	// CodeDisplay exists only so the guest page can re-show the code after
	// consent; it must never appear in clerk-facing responses.
	CodeHash    string `gorm:"size:64" json:"-"`
	CodeSalt    string `gorm:"size:64" json:"-"`
	CodeDisplay string `gorm:"size:8" json:"-"`

	Token          string  `gorm:"uniqueIndex;size:512" json:"-"`
	IdempotencyKey *string `gorm:"uniqueIndex;size:128" json:"-"`

	Status             string `gorm:"size:16;default:SENT;index" json:"status"`
	VerificationMethod string `gorm:"size:8" json:"verificationMethod,omitempty"`

	AttemptCount int        `gorm:"default:0" json:"-"`
	MaxAttempts  int        `gorm:"default:5" json:"-"`
	LockedUntil  *time.Time `json:"-"`

	NotifyStatus string `gorm:"size:16;default:PENDING" json:"notifyStatus"`
	NotifyRef    string `gorm:"size:64" json:"-"`

	SentAt     time.Time  `json:"sentAt"`
	ExpiresAt  time.Time  `gorm:"index" json:"expiresAt"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

// IsExpired is the read-time expiry check: a SENT row past its expiry is
// treated as expired even if the sweep has not flipped its status yet.
func (a *Attestation) IsExpired() bool {
	if a.Status == AttestationStatusExpired {
		return true
	}
	return a.Status == AttestationStatusSent && time.Now().After(a.ExpiresAt)
}

// IsLocked reports whether clerk code attempts are currently locked out.
func (a *Attestation) IsLocked() bool {
	return a.LockedUntil != nil && time.Now().Before(*a.LockedUntil)
}
