package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"attestation-backend/config"
	"attestation-backend/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	// one connection so every goroutine sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))
	return db
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingNotifier) Notify(phone, message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, phone)
	return fmt.Sprintf("ref-%d", len(r.sent)), nil
}

type failingNotifier struct{}

func (f *failingNotifier) Notify(phone, message string) (string, error) {
	return "", errors.New("provider down")
}

func newTestService(t *testing.T) (*AttestationService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	tokens := NewTokenService([]byte("test-signing-secret-32-characters"))
	events := NewAttestationEventService(db)
	svc := NewAttestationService(db, tokens, events, &recordingNotifier{})
	return svc, db
}

func sampleInput() SendInput {
	return SendInput{
		Guest: GuestInput{FullName: "Jane Doe", Phone: "+15551234567"},
		Stay: StayInput{
			CheckIn:   time.Now().Add(24 * time.Hour),
			CheckOut:  time.Now().Add(72 * time.Hour),
			CardLast4: "1234",
		},
		PolicyText: "You agree to the house rules.",
	}
}

func countEvents(t *testing.T, db *gorm.DB, attestationID uint, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.AttestationEvent{}).
		Where("attestation_id = ? AND event_type = ?", attestationID, eventType).
		Count(&n).Error)
	return n
}

func wrongCodeFor(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func TestSendAttestationEndToEnd(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)
	assert.NotZero(result.Attestation.ID)
	assert.NotZero(result.Attestation.GuestID)
	assert.Len(result.Code, 6)
	assert.Contains(result.GuestURL, result.Attestation.Token)
	assert.Equal(models.AttestationStatusSent, result.Attestation.Status)
	assert.Equal(int64(1), countEvents(t, db, result.Attestation.ID, models.EventSMSSent))

	token := result.Attestation.Token

	policyText, ok := svc.InitGuestSession(token, ClientMeta{IP: "203.0.113.9", UserAgent: "test"})
	assert.True(ok)
	assert.Equal("You agree to the house rules.", policyText)
	assert.Equal(int64(1), countEvents(t, db, result.Attestation.ID, models.EventPageOpen))

	code, ok := svc.ConfirmConsent(token, true, ClientMeta{IP: "203.0.113.9"})
	assert.True(ok)
	assert.Equal(result.Code, code)

	vr, err := svc.VerifyClerkCode(1, result.Attestation.ID, code)
	assert.Nil(err)
	assert.True(vr.OK)
	assert.NotNil(vr.VerifiedAt)

	// replaying the correct code after verification is refused
	vr, err = svc.VerifyClerkCode(1, result.Attestation.ID, code)
	assert.Nil(err)
	assert.False(vr.OK)
	assert.Equal(ReasonAlreadyVerified, vr.Reason)

	var att models.Attestation
	require.NoError(t, db.First(&att, result.Attestation.ID).Error)
	assert.Equal(models.AttestationStatusVerified, att.Status)
	assert.Equal(models.VerificationMethodCode, att.VerificationMethod)
	assert.NotNil(att.VerifiedAt)
}

func TestDigestFrozenAcrossConsent(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	var before models.Attestation
	require.NoError(t, db.First(&before, result.Attestation.ID).Error)

	for i := 0; i < 3; i++ {
		code, ok := svc.ConfirmConsent(result.Attestation.Token, true, ClientMeta{})
		assert.True(ok)
		assert.Equal(result.Code, code, "consent must return the original code, never a regenerated one")
	}

	var after models.Attestation
	require.NoError(t, db.First(&after, result.Attestation.ID).Error)
	assert.Equal(before.CodeHash, after.CodeHash)
	assert.Equal(before.CodeSalt, after.CodeSalt)
	assert.Equal(before.CodeDisplay, after.CodeDisplay)
	assert.Equal(models.AttestationStatusSent, after.Status)

	// the originally issued code still verifies after repeated consent
	vr, err := svc.VerifyClerkCode(1, result.Attestation.ID, result.Code)
	assert.Nil(err)
	assert.True(vr.OK)
}

func TestConsentIdempotent(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	codeA, okA := svc.ConfirmConsent(result.Attestation.Token, true, ClientMeta{})
	codeB, okB := svc.ConfirmConsent(result.Attestation.Token, true, ClientMeta{})
	assert.True(okA)
	assert.True(okB)
	assert.Equal(codeA, codeB)
	assert.Equal(int64(2), countEvents(t, db, result.Attestation.ID, models.EventPolicyAccept))
}

func TestConsentDeclined(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	code, ok := svc.ConfirmConsent(result.Attestation.Token, false, ClientMeta{})
	assert.False(ok)
	assert.Empty(code)
	assert.Equal(int64(1), countEvents(t, db, result.Attestation.ID, models.EventConsentDeclined))
	assert.Equal(int64(0), countEvents(t, db, result.Attestation.ID, models.EventPolicyAccept))
}

func TestWrongCodeRejected(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	vr, err := svc.VerifyClerkCode(1, result.Attestation.ID, wrongCodeFor(result.Code))
	assert.Nil(err)
	assert.False(vr.OK)
	assert.Equal(ReasonInvalidCode, vr.Reason)

	var att models.Attestation
	require.NoError(t, db.First(&att, result.Attestation.ID).Error)
	assert.Equal(models.AttestationStatusSent, att.Status)
	assert.Equal(1, att.AttemptCount)
	assert.Equal(int64(1), countEvents(t, db, result.Attestation.ID, models.EventCodeFailed))
}

func TestConcurrentVerifyExactlyOneSuccess(t *testing.T) {
	assert := assert.New(t)
	svc, _ := newTestService(t)

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	const callers = 8
	results := make([]VerifyResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.VerifyClerkCode(1, result.Attestation.ID, result.Code)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := 0; i < callers; i++ {
		assert.Nil(errs[i])
		if results[i].OK {
			successes++
		} else {
			assert.Equal(ReasonAlreadyVerified, results[i].Reason)
		}
	}
	assert.Equal(1, successes, "exactly one concurrent verification may win")
}

func TestLockoutAfterMaxAttempts(t *testing.T) {
	assert := assert.New(t)
	svc, _ := newTestService(t)
	svc.MaxAttempts = 3

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	wrong := wrongCodeFor(result.Code)
	for i := 0; i < 3; i++ {
		vr, err := svc.VerifyClerkCode(1, result.Attestation.ID, wrong)
		assert.Nil(err)
		assert.False(vr.OK)
		assert.Equal(ReasonInvalidCode, vr.Reason)
	}

	// locked now: even the correct code is refused
	vr, err := svc.VerifyClerkCode(1, result.Attestation.ID, result.Code)
	assert.Nil(err)
	assert.False(vr.OK)
	assert.Equal(ReasonTooManyAttempts, vr.Reason)
}

func TestExpiredAttestation(t *testing.T) {
	assert := assert.New(t)
	svc, _ := newTestService(t)
	svc.TokenTTL = -time.Minute

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	// the guest link is dead
	_, ok := svc.InitGuestSession(result.Attestation.Token, ClientMeta{})
	assert.False(ok)
	_, ok = svc.ConfirmConsent(result.Attestation.Token, true, ClientMeta{})
	assert.False(ok)

	// and the clerk-side check reports expiry without touching the code
	vr, err := svc.VerifyClerkCode(1, result.Attestation.ID, result.Code)
	assert.Nil(err)
	assert.False(vr.OK)
	assert.Equal(ReasonExpired, vr.Reason)
}

func TestGuestEndpointsNeutralOnBadToken(t *testing.T) {
	assert := assert.New(t)
	svc, _ := newTestService(t)

	_, ok := svc.InitGuestSession("garbage", ClientMeta{})
	assert.False(ok)

	_, ok = svc.ConfirmConsent("garbage", true, ClientMeta{})
	assert.False(ok)

	// structurally valid token signed by someone else
	other := NewTokenService([]byte("a-completely-different-secret-key"))
	forged, err := other.Issue(1, 1, 1, time.Hour)
	assert.Nil(err)
	_, ok = svc.InitGuestSession(forged, ClientMeta{})
	assert.False(ok)
}

func TestNotifyFailureStillCreates(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)
	tokens := NewTokenService([]byte("test-signing-secret-32-characters"))
	svc := NewAttestationService(db, tokens, NewAttestationEventService(db), &failingNotifier{})

	result, err := svc.Send(1, sampleInput())
	assert.True(errors.Is(err, ErrNotifyFailed))
	assert.NotZero(result.Attestation.ID)
	assert.NotEmpty(result.Code)

	var att models.Attestation
	require.NoError(t, db.First(&att, result.Attestation.ID).Error)
	assert.Equal(models.AttestationStatusSent, att.Status)
	assert.Equal("FAILED", att.NotifyStatus)

	// staff can still complete the flow by relaying the code manually
	vr, err := svc.VerifyClerkCode(1, att.ID, result.Code)
	assert.Nil(err)
	assert.True(vr.OK)
}

func TestIdempotencyKeyReplay(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)

	in := sampleInput()
	in.IdempotencyKey = "req-abc-123"

	first, err := svc.Send(1, in)
	assert.Nil(err)
	second, err := svc.Send(1, in)
	assert.Nil(err)

	assert.Equal(first.Attestation.ID, second.Attestation.ID)
	assert.Equal(first.Code, second.Code)

	var n int64
	require.NoError(t, db.Model(&models.Attestation{}).Count(&n).Error)
	assert.Equal(int64(1), n)
}

func TestGuestUpsertByHotelAndPhone(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)

	first, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	in := sampleInput()
	in.Guest.FullName = "Jane Q. Doe"
	second, err := svc.Send(1, in)
	assert.Nil(err)

	assert.Equal(first.Attestation.GuestID, second.Attestation.GuestID)

	var guests int64
	require.NoError(t, db.Model(&models.Guest{}).Count(&guests).Error)
	assert.Equal(int64(1), guests)

	var guest models.Guest
	require.NoError(t, db.First(&guest, first.Attestation.GuestID).Error)
	assert.Equal("Jane Q. Doe", guest.FullName)

	// the first attestation keeps its frozen snapshot
	var att models.Attestation
	require.NoError(t, db.First(&att, first.Attestation.ID).Error)
	assert.Equal("Jane Doe", att.GuestFullName)

	// a different hotel gets its own guest row for the same phone
	third, err := svc.Send(2, sampleInput())
	assert.Nil(err)
	assert.NotEqual(first.Attestation.GuestID, third.Attestation.GuestID)
}

func TestExpireStaleSweep(t *testing.T) {
	assert := assert.New(t)
	svc, db := newTestService(t)
	svc.TokenTTL = -time.Minute

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	flipped, err := svc.ExpireStale()
	assert.Nil(err)
	assert.Equal(int64(1), flipped)

	var att models.Attestation
	require.NoError(t, db.First(&att, result.Attestation.ID).Error)
	assert.Equal(models.AttestationStatusExpired, att.Status)
	assert.Equal(int64(1), countEvents(t, db, att.ID, models.EventExpired))

	// second sweep finds nothing
	flipped, err = svc.ExpireStale()
	assert.Nil(err)
	assert.Equal(int64(0), flipped)
}

func TestSendValidation(t *testing.T) {
	assert := assert.New(t)
	svc, _ := newTestService(t)

	in := sampleInput()
	in.Guest.FullName = "  "
	in.Guest.Phone = "12"
	in.Stay.CardLast4 = "12ab"
	in.Stay.CheckOut = time.Now().Add(-48 * time.Hour)

	_, err := svc.Send(1, in)
	var vErr *ValidationError
	assert.True(errors.As(err, &vErr))
	assert.Contains(vErr.Fields, "fullName")
	assert.Contains(vErr.Fields, "phone")
	assert.Contains(vErr.Fields, "ccLast4")
	assert.Contains(vErr.Fields, "checkOut")
}

func TestVerifyScopedToHotel(t *testing.T) {
	assert := assert.New(t)
	svc, _ := newTestService(t)

	result, err := svc.Send(1, sampleInput())
	assert.Nil(err)

	_, err = svc.VerifyClerkCode(2, result.Attestation.ID, result.Code)
	assert.True(errors.Is(err, ErrAttestationNotFound))

	_, err = svc.VerifyClerkCode(1, 9999, result.Code)
	assert.True(errors.Is(err, ErrAttestationNotFound))
}
