package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// Notifier dispatches the guest-facing message. Delivery failures are
// reported to the caller but never roll back attestation creation.
type Notifier interface {
	Notify(phone, message string) (string, error)
}

// NewNotifier picks the SMS provider client when SMS_API_URL is configured
// and a logging mock otherwise, so local development works without an
// account.
func NewNotifier() Notifier {
	endpoint := os.Getenv("SMS_API_URL")
	apiKey := os.Getenv("SMS_API_KEY")
	if endpoint == "" || apiKey == "" {
		return &mockNotifier{}
	}
	return &SMSService{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Sender:   os.Getenv("SMS_SENDER"),
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type mockNotifier struct{}

func (m *mockNotifier) Notify(phone, message string) (string, error) {
	ref := "mock-" + uuid.NewString()
	log.Printf("[MOCK SMS] to:%s ref:%s body:%q", phone, ref, message)
	return ref, nil
}

// SMSService posts messages to an HTTP SMS gateway.
type SMSService struct {
	Endpoint string
	APIKey   string
	Sender   string
	Client   *http.Client
}

type smsDispatchResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

func (s *SMSService) Notify(phone, message string) (string, error) {
	payload := map[string]interface{}{
		"to":   phone,
		"from": s.Sender,
		"body": message,
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", s.Endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var dr smsDispatchResponse
	if err := json.Unmarshal(bodyBytes, &dr); err != nil {
		return "", fmt.Errorf("JSON parse error: %w", err)
	}
	if dr.Status != "" && dr.Status != "success" {
		return "", fmt.Errorf("provider status error: %s - %s", dr.Status, dr.Message)
	}
	if dr.MessageID == "" {
		dr.MessageID = uuid.NewString()
	}

	log.Printf("SMS dispatched to %s (ref: %s)", phone, dr.MessageID)
	return dr.MessageID, nil
}
