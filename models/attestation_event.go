package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event types recorded over an attestation's lifetime.
const (
	EventSMSSent         = "sms.sent"
	EventPageOpen        = "page.open"
	EventPolicyAccept    = "policy.accept"
	EventConsentDeclined = "consent.declined"
	EventCodeSubmit      = "code.submit"
	EventCodeFailed      = "code.failed"
	EventVerified        = "verified"
	EventExpired         = "expired"
)

// AttestationEvent is an append-only audit row. Events reference their
// attestation but live independently; they are never updated or deleted
// outside bulk retention.
type AttestationEvent struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	AttestationID uint           `gorm:"index;not null" json:"attestationId"`
	EventType     string         `gorm:"size:32;index" json:"eventType"`
	Payload       datatypes.JSON `json:"payload,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}
