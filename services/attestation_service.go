package services

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"attestation-backend/models"
	"attestation-backend/utils"

	mysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to controllers.
var (
	ErrAttestationNotFound = errors.New("attestation_not_found")

	// ErrNotifyFailed means the attestation row exists but the SMS did not
	// go out. Staff can relay the link and code manually.
	ErrNotifyFailed = errors.New("sms_send_failed")
)

// Clerk verification outcomes.
const (
	ReasonAlreadyVerified = "already verified"
	ReasonExpired         = "expired"
	ReasonInvalidCode     = "invalid code"
	ReasonTooManyAttempts = "too many attempts"
)

var last4Re = regexp.MustCompile(`^[0-9]{4}$`)

// ValidationError lists the staff input fields that failed structural checks.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

type GuestInput struct {
	FullName      string
	Phone         string
	LicenseNumber string
	LicenseState  string
}

type StayInput struct {
	CheckIn   time.Time
	CheckOut  time.Time
	CardLast4 string
}

type SendInput struct {
	Guest      GuestInput
	Stay       StayInput
	PolicyText string

	// IdempotencyKey deduplicates double-submitted check-in forms.
	IdempotencyKey string
}

type SendResult struct {
	Attestation models.Attestation
	GuestURL    string
	Code        string
}

// ClientMeta is best-effort context from the guest's browser.
type ClientMeta struct {
	IP          string
	UserAgent   string
	Geolocation string
}

func (m ClientMeta) payload() map[string]interface{} {
	p := map[string]interface{}{}
	if m.IP != "" {
		p["ip"] = m.IP
	}
	if m.UserAgent != "" {
		p["userAgent"] = m.UserAgent
	}
	if m.Geolocation != "" {
		p["geo"] = m.Geolocation
	}
	return p
}

type VerifyResult struct {
	OK         bool
	Reason     string
	VerifiedAt *time.Time
}

// AttestationService orchestrates the attestation lifecycle: creation + SMS
// dispatch, the guest consent page, and the clerk-side code check. All state
// mutation goes through this service's conditional updates; nothing caches
// writable state.
type AttestationService struct {
	DB       *gorm.DB
	Tokens   *TokenService
	Events   *AttestationEventService
	Notifier Notifier

	TokenTTL      time.Duration
	MaxAttempts   int
	LockoutWindow time.Duration
}

func NewAttestationService(db *gorm.DB, tokens *TokenService, events *AttestationEventService, notifier Notifier) *AttestationService {
	return &AttestationService{
		DB:            db,
		Tokens:        tokens,
		Events:        events,
		Notifier:      notifier,
		TokenTTL:      DefaultTokenTTL,
		MaxAttempts:   5,
		LockoutWindow: 15 * time.Minute,
	}
}

// Send validates staff input, upserts the guest, persists the attestation
// with a fresh code + token, and dispatches the guest link. The guest upsert
// and attestation insert share one transaction; the SMS goes out only after
// that transaction commits.
func (s *AttestationService) Send(hotelID uint, in SendInput) (SendResult, error) {
	now := time.Now()

	var fields []string
	fullName := strings.TrimSpace(in.Guest.FullName)
	if fullName == "" {
		fields = append(fields, "fullName")
	}
	phone, err := utils.NormalizePhone(in.Guest.Phone)
	if err != nil {
		fields = append(fields, "phone")
	}
	if !last4Re.MatchString(in.Stay.CardLast4) {
		fields = append(fields, "ccLast4")
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if in.Stay.CheckIn.IsZero() {
		fields = append(fields, "checkIn")
	}
	if in.Stay.CheckOut.IsZero() || in.Stay.CheckOut.Before(today) {
		fields = append(fields, "checkOut")
	} else if !in.Stay.CheckIn.IsZero() && in.Stay.CheckOut.Before(in.Stay.CheckIn) {
		fields = append(fields, "checkOut")
	}
	if strings.TrimSpace(in.PolicyText) == "" {
		fields = append(fields, "policyText")
	}
	if len(fields) > 0 {
		return SendResult{}, &ValidationError{Fields: fields}
	}

	idemKey := strings.TrimSpace(in.IdempotencyKey)
	if idemKey != "" {
		var existing models.Attestation
		err := s.DB.Where("hotel_id = ? AND idempotency_key = ?", hotelID, idemKey).First(&existing).Error
		if err == nil {
			return s.resultFor(existing), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return SendResult{}, err
		}
	}

	code, err := utils.GenerateCode()
	if err != nil {
		return SendResult{}, err
	}
	salt, err := utils.GenerateSalt()
	if err != nil {
		return SendResult{}, err
	}
	// Placeholder keeps the unique token column collision-free until the
	// signed token, which needs the row ID, replaces it inside the tx.
	placeholder, err := utils.GenerateSecureToken(32)
	if err != nil {
		return SendResult{}, err
	}

	var idemPtr *string
	if idemKey != "" {
		idemPtr = &idemKey
	}

	var att models.Attestation
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var guest models.Guest
		err := tx.Where("hotel_id = ? AND phone = ?", hotelID, phone).First(&guest).Error
		switch {
		case err == nil:
			guest.FullName = fullName
			guest.LicenseNumber = strings.TrimSpace(in.Guest.LicenseNumber)
			guest.LicenseState = strings.TrimSpace(in.Guest.LicenseState)
			if err := tx.Save(&guest).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			guest = models.Guest{
				HotelID:       hotelID,
				Phone:         phone,
				FullName:      fullName,
				LicenseNumber: strings.TrimSpace(in.Guest.LicenseNumber),
				LicenseState:  strings.TrimSpace(in.Guest.LicenseState),
			}
			if err := tx.Create(&guest).Error; err != nil {
				return err
			}
		default:
			return err
		}

		att = models.Attestation{
			HotelID:        hotelID,
			GuestID:        guest.ID,
			GuestFullName:  fullName,
			GuestPhone:     phone,
			LicenseNumber:  guest.LicenseNumber,
			LicenseState:   guest.LicenseState,
			CheckIn:        in.Stay.CheckIn,
			CheckOut:       in.Stay.CheckOut,
			CardLast4:      in.Stay.CardLast4,
			PolicyText:     in.PolicyText,
			CodeHash:       utils.HashCode(code, salt),
			CodeSalt:       salt,
			CodeDisplay:    code,
			Token:          placeholder,
			IdempotencyKey: idemPtr,
			Status:         models.AttestationStatusSent,
			MaxAttempts:    s.MaxAttempts,
			SentAt:         now,
			ExpiresAt:      now.Add(s.TokenTTL),
		}
		if err := tx.Create(&att).Error; err != nil {
			return err
		}

		signed, err := s.Tokens.Issue(att.ID, guest.ID, hotelID, s.TokenTTL)
		if err != nil {
			return err
		}
		att.Token = signed
		return tx.Model(&models.Attestation{}).Where("id = ?", att.ID).Update("token", signed).Error
	})
	if err != nil {
		if idemKey != "" && isDuplicateKey(err) {
			// Lost a race with a concurrent duplicate submission: hand back
			// the row the winner created.
			var existing models.Attestation
			if lookupErr := s.DB.Where("hotel_id = ? AND idempotency_key = ?", hotelID, idemKey).First(&existing).Error; lookupErr == nil {
				return s.resultFor(existing), nil
			}
		}
		return SendResult{}, err
	}

	s.Events.Record(att.ID, models.EventSMSSent, map[string]interface{}{"phone": phone})

	result := s.resultFor(att)
	message := fmt.Sprintf("Please review and confirm your check-in at the front desk: %s", result.GuestURL)
	ref, notifyErr := s.Notifier.Notify(phone, message)
	if notifyErr != nil {
		log.Printf("SMS dispatch failed for attestation %d: %v", att.ID, notifyErr)
		if err := s.DB.Model(&att).Update("notify_status", "FAILED").Error; err != nil {
			log.Printf("warning: failed to record notify status for attestation %d: %v", att.ID, err)
		}
		result.Attestation.NotifyStatus = "FAILED"
		return result, ErrNotifyFailed
	}

	if err := s.DB.Model(&att).Updates(map[string]interface{}{
		"notify_status": "SENT",
		"notify_ref":    ref,
	}).Error; err != nil {
		log.Printf("warning: failed to record notify status for attestation %d: %v", att.ID, err)
	}
	result.Attestation.NotifyStatus = "SENT"
	result.Attestation.NotifyRef = ref
	return result, nil
}

func (s *AttestationService) resultFor(att models.Attestation) SendResult {
	frontendURL := utils.EnvOrDefault("FRONTEND_URL", "http://localhost:3000")
	return SendResult{
		Attestation: att,
		GuestURL:    utils.BuildGuestLink(frontendURL, att.Token),
		Code:        att.CodeDisplay,
	}
}

// InitGuestSession validates the guest link and returns the policy text
// frozen at creation. Safe to repeat: it never changes attestation state,
// only appends a page.open event.
func (s *AttestationService) InitGuestSession(token string, meta ClientMeta) (string, bool) {
	if _, ok := s.Tokens.Verify(token); !ok {
		return "", false
	}

	var att models.Attestation
	if err := s.DB.Where("token = ?", token).First(&att).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("guest session lookup failed: %v", err)
		}
		return "", false
	}

	s.Events.Record(att.ID, models.EventPageOpen, meta.payload())
	return att.PolicyText, true
}

// ConfirmConsent records the guest's acceptance and returns the ORIGINAL
// display code for the guest page to show. It must never generate a new code
// or touch the stored digest; its only state effect is the appended event,
// so repeated acceptance while the attestation is still SENT is harmless.
func (s *AttestationService) ConfirmConsent(token string, accepted bool, meta ClientMeta) (string, bool) {
	if _, ok := s.Tokens.Verify(token); !ok {
		return "", false
	}

	var att models.Attestation
	if err := s.DB.Where("token = ?", token).First(&att).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("consent lookup failed: %v", err)
		}
		return "", false
	}

	// Consent on a terminal attestation is meaningless.
	if att.Status != models.AttestationStatusSent || att.IsExpired() {
		return "", false
	}

	if !accepted {
		s.Events.Record(att.ID, models.EventConsentDeclined, meta.payload())
		return "", false
	}

	s.Events.Record(att.ID, models.EventPolicyAccept, meta.payload())
	return att.CodeDisplay, true
}

// VerifyClerkCode checks the staff-entered code against the stored digest
// and transitions the attestation to VERIFIED exactly once. The transition
// is a conditional update on status, so concurrent submissions produce one
// success and the rest get "already verified".
func (s *AttestationService) VerifyClerkCode(hotelID, attestationID uint, submittedCode string) (VerifyResult, error) {
	var att models.Attestation
	err := s.DB.Where("id = ? AND hotel_id = ?", attestationID, hotelID).First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VerifyResult{}, ErrAttestationNotFound
	}
	if err != nil {
		return VerifyResult{}, err
	}

	// Terminal states answer without re-checking the code.
	if att.Status == models.AttestationStatusVerified {
		return VerifyResult{Reason: ReasonAlreadyVerified}, nil
	}
	if att.IsExpired() {
		return VerifyResult{Reason: ReasonExpired}, nil
	}
	if att.IsLocked() {
		return VerifyResult{Reason: ReasonTooManyAttempts}, nil
	}

	code := utils.NormalizeCode(submittedCode)
	if !utils.IsValidCodeFormat(code) || !utils.VerifyCode(code, att.CodeHash, att.CodeSalt) {
		s.recordFailedAttempt(&att)
		return VerifyResult{Reason: ReasonInvalidCode}, nil
	}

	verifiedAt := time.Now().UTC()
	res := s.DB.Model(&models.Attestation{}).
		Where("id = ? AND status = ?", att.ID, models.AttestationStatusSent).
		Updates(map[string]interface{}{
			"status":              models.AttestationStatusVerified,
			"verified_at":         verifiedAt,
			"verification_method": models.VerificationMethodCode,
		})
	if res.Error != nil {
		return VerifyResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		// Another submission won the race.
		return VerifyResult{Reason: ReasonAlreadyVerified}, nil
	}

	s.Events.Record(att.ID, models.EventCodeSubmit, nil)
	s.Events.Record(att.ID, models.EventVerified, map[string]interface{}{
		"method": models.VerificationMethodCode,
	})
	return VerifyResult{OK: true, VerifiedAt: &verifiedAt}, nil
}

// recordFailedAttempt bumps the attempt counter atomically and arms the
// lockout once the row's allowance is spent.
func (s *AttestationService) recordFailedAttempt(att *models.Attestation) {
	res := s.DB.Model(&models.Attestation{}).
		Where("id = ?", att.ID).
		UpdateColumn("attempt_count", gorm.Expr("attempt_count + ?", 1))
	if res.Error != nil {
		log.Printf("warning: failed to bump attempt count for attestation %d: %v", att.ID, res.Error)
	}

	attempts := att.AttemptCount + 1
	var refreshed models.Attestation
	if err := s.DB.Select("attempt_count").First(&refreshed, att.ID).Error; err == nil {
		attempts = refreshed.AttemptCount
	}

	if att.MaxAttempts > 0 && attempts >= att.MaxAttempts && s.LockoutWindow > 0 {
		until := time.Now().Add(s.LockoutWindow)
		if err := s.DB.Model(&models.Attestation{}).Where("id = ?", att.ID).Update("locked_until", until).Error; err != nil {
			log.Printf("warning: failed to lock attestation %d: %v", att.ID, err)
		}
	}

	s.Events.Record(att.ID, models.EventCodeFailed, map[string]interface{}{"attempts": attempts})
}

// ExpireStale flips SENT rows past their expiry to EXPIRED. Purely cosmetic
// for reporting: reads already treat those rows as expired.
func (s *AttestationService) ExpireStale() (int64, error) {
	var ids []uint
	if err := s.DB.Model(&models.Attestation{}).
		Where("status = ? AND expires_at <= ?", models.AttestationStatusSent, time.Now()).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	var flipped int64
	for _, id := range ids {
		res := s.DB.Model(&models.Attestation{}).
			Where("id = ? AND status = ?", id, models.AttestationStatusSent).
			Update("status", models.AttestationStatusExpired)
		if res.Error != nil {
			return flipped, res.Error
		}
		if res.RowsAffected > 0 {
			flipped++
			s.Events.Record(id, models.EventExpired, nil)
		}
	}
	return flipped, nil
}

// ListByHotel returns the hotel's attestations, newest first.
func (s *AttestationService) ListByHotel(hotelID uint) ([]models.Attestation, error) {
	var out []models.Attestation
	err := s.DB.Where("hotel_id = ?", hotelID).Order("id desc").Find(&out).Error
	return out, err
}

// GetByID returns one attestation scoped to the staff's hotel.
func (s *AttestationService) GetByID(hotelID, attestationID uint) (models.Attestation, error) {
	var att models.Attestation
	err := s.DB.Where("id = ? AND hotel_id = ?", attestationID, hotelID).First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Attestation{}, ErrAttestationNotFound
	}
	return att, err
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	// sqlite (tests) reports unique violations as plain strings
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
