package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attestation-backend/config"
	"attestation-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type silentNotifier struct{}

func (silentNotifier) Notify(phone, message string) (string, error) { return "ref-1", nil }

func newCheckinRouter(t *testing.T) (*gin.Engine, *services.AttestationService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	tokens := services.NewTokenService([]byte("test-signing-secret-32-characters"))
	svc := services.NewAttestationService(db, tokens, services.NewAttestationEventService(db), silentNotifier{})

	ctrl := NewCheckinController(svc)
	r := gin.New()
	r.POST("/api/checkin/session", ctrl.InitSession)
	r.POST("/api/checkin/consent", ctrl.ConfirmConsent)
	return r, svc
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func seedAttestation(t *testing.T, svc *services.AttestationService) services.SendResult {
	t.Helper()
	result, err := svc.Send(1, services.SendInput{
		Guest: services.GuestInput{FullName: "Jane Doe", Phone: "+15551234567"},
		Stay: services.StayInput{
			CheckIn:   time.Now().Add(24 * time.Hour),
			CheckOut:  time.Now().Add(72 * time.Hour),
			CardLast4: "1234",
		},
		PolicyText: "No smoking. Quiet hours after 10pm.",
	})
	require.NoError(t, err)
	return result
}

func TestInitSessionReturnsPolicyText(t *testing.T) {
	assert := assert.New(t)
	r, svc := newCheckinRouter(t)
	result := seedAttestation(t, svc)

	status, body := postJSON(t, r, "/api/checkin/session", gin.H{"token": result.Attestation.Token})
	assert.Equal(http.StatusOK, status)
	assert.Equal(true, body["valid"])
	assert.Equal("No smoking. Quiet hours after 10pm.", body["policyText"])
}

func TestInitSessionNeutralOnBadToken(t *testing.T) {
	assert := assert.New(t)
	r, _ := newCheckinRouter(t)

	for _, payload := range []gin.H{
		{"token": "not-a-real-token"},
		{"token": ""},
		{},
	} {
		status, body := postJSON(t, r, "/api/checkin/session", payload)
		assert.Equal(http.StatusOK, status)
		assert.Equal(false, body["valid"])
		assert.NotContains(body, "policyText")
	}
}

func TestConfirmConsentReturnsCode(t *testing.T) {
	assert := assert.New(t)
	r, svc := newCheckinRouter(t)
	result := seedAttestation(t, svc)

	status, body := postJSON(t, r, "/api/checkin/consent", gin.H{"token": result.Attestation.Token, "accepted": true})
	assert.Equal(http.StatusOK, status)
	assert.Equal(true, body["ok"])
	assert.Equal(result.Code, body["code"])

	// accepting again shows the same code
	_, body = postJSON(t, r, "/api/checkin/consent", gin.H{"token": result.Attestation.Token, "accepted": true})
	assert.Equal(true, body["ok"])
	assert.Equal(result.Code, body["code"])
}

func TestConfirmConsentDeclined(t *testing.T) {
	assert := assert.New(t)
	r, svc := newCheckinRouter(t)
	result := seedAttestation(t, svc)

	status, body := postJSON(t, r, "/api/checkin/consent", gin.H{"token": result.Attestation.Token, "accepted": false})
	assert.Equal(http.StatusOK, status)
	assert.Equal(false, body["ok"])
	assert.NotContains(body, "code")
}

func TestConfirmConsentNeutralOnBadToken(t *testing.T) {
	assert := assert.New(t)
	r, _ := newCheckinRouter(t)

	status, body := postJSON(t, r, "/api/checkin/consent", gin.H{"token": "garbage", "accepted": true})
	assert.Equal(http.StatusOK, status)
	assert.Equal(false, body["ok"])

	// missing accepted field binds as invalid and gets the same neutral shape
	status, body = postJSON(t, r, "/api/checkin/consent", gin.H{"token": "garbage"})
	assert.Equal(http.StatusOK, status)
	assert.Equal(false, body["ok"])
}
