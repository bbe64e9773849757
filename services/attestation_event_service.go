package services

import (
	"encoding/json"
	"log"

	"attestation-backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttestationEventService appends audit events. A gap in the audit trail is
// tolerable; blocking a check-in on a logging failure is not, so Record
// never returns an error.
type AttestationEventService struct {
	DB *gorm.DB
}

func NewAttestationEventService(db *gorm.DB) *AttestationEventService {
	return &AttestationEventService{DB: db}
}

// Record appends one event row. Errors are logged and swallowed.
func (s *AttestationEventService) Record(attestationID uint, eventType string, payload map[string]interface{}) {
	ev := models.AttestationEvent{
		AttestationID: attestationID,
		EventType:     eventType,
	}
	if len(payload) > 0 {
		if b, err := json.Marshal(payload); err == nil {
			ev.Payload = datatypes.JSON(b)
		} else {
			log.Printf("warning: event payload for %s on attestation %d not serializable: %v",
				eventType, attestationID, err)
		}
	}
	if err := s.DB.Create(&ev).Error; err != nil {
		log.Printf("warning: event %s on attestation %d not recorded: %v",
			eventType, attestationID, err)
	}
}

// ListByAttestation returns the trail oldest-first for reporting.
func (s *AttestationEventService) ListByAttestation(attestationID uint) ([]models.AttestationEvent, error) {
	var out []models.AttestationEvent
	err := s.DB.
		Where("attestation_id = ?", attestationID).
		Order("id asc").
		Find(&out).Error
	return out, err
}
