package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/model"
	"walletwatch/apps/walletwatch/internal/monitor"
)

type notifyCall struct {
	address string
	tx      model.TransactionEvent
}

type fakeMonitorService struct {
	createErr error
	toggleErr error
	deleteErr error
	listErr   error
	notifyErr error

	configs []model.MonitorConfig

	createdAddress string
	createdEmail   string
	deletedID      string
	toggledID      string
	toggledActive  bool
	notifies       []notifyCall
}

func (s *fakeMonitorService) Create(address, email, label string) (*model.MonitorConfig, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createdAddress = address
	s.createdEmail = email
	cfg := model.MonitorConfig{
		ID:        "mon-1",
		Address:   strings.ToLower(address),
		Email:     strings.ToLower(email),
		Label:     label,
		IsActive:  true,
		CreatedAt: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	return &cfg, nil
}

func (s *fakeMonitorService) Toggle(id string, active bool) (*model.MonitorConfig, error) {
	if s.toggleErr != nil {
		return nil, s.toggleErr
	}
	s.toggledID = id
	s.toggledActive = active
	cfg := model.MonitorConfig{ID: id, IsActive: active}
	return &cfg, nil
}

func (s *fakeMonitorService) Delete(id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedID = id
	return nil
}

func (s *fakeMonitorService) List() ([]model.MonitorConfig, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.configs, nil
}

func (s *fakeMonitorService) NotifyAddress(ctx context.Context, address string, tx model.TransactionEvent) error {
	if s.notifyErr != nil {
		return s.notifyErr
	}
	s.notifies = append(s.notifies, notifyCall{address: address, tx: tx})
	return nil
}

func newTestRouter(service MonitorService, secret string) http.Handler {
	return NewServer(0, service, secret, zap.NewNop()).setupRoutes()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestCreateMonitorReturnsCreatedConfig(t *testing.T) {
	service := &fakeMonitorService{}
	router := newTestRouter(service, "")

	recorder := doJSON(t, router, "POST", "/api/monitor", CreateMonitorRequest{
		Address: "0xABCDEF1234567890abcdef1234567890ABCDEF12",
		Email:   "Alice@Example.com",
		Label:   "treasury",
	}, nil)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp MessageResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Config == nil {
		t.Fatal("expected config in response")
	}
	if resp.Config.ID != "mon-1" || resp.Config.Label != "treasury" {
		t.Errorf("unexpected config: %+v", resp.Config)
	}
	if service.createdAddress != "0xABCDEF1234567890abcdef1234567890ABCDEF12" {
		t.Errorf("service received address %q", service.createdAddress)
	}
}

func TestCreateMonitorRejectsInvalidJSON(t *testing.T) {
	router := newTestRouter(&fakeMonitorService{}, "")

	recorder := doJSON(t, router, "POST", "/api/monitor", []byte("{not json"), nil)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "invalid_request_body" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestCreateMonitorMapsValidationError(t *testing.T) {
	service := &fakeMonitorService{
		createErr: &monitor.ValidationError{Field: "address", Reason: "not a valid hex address"},
	}
	router := newTestRouter(service, "")

	recorder := doJSON(t, router, "POST", "/api/monitor", CreateMonitorRequest{
		Address: "bogus",
		Email:   "a@example.com",
	}, nil)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "invalid_address" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestCreateMonitorMapsDuplicateToConflict(t *testing.T) {
	service := &fakeMonitorService{createErr: monitor.ErrDuplicateConfig}
	router := newTestRouter(service, "")

	recorder := doJSON(t, router, "POST", "/api/monitor", CreateMonitorRequest{
		Address: "0xabcdef1234567890abcdef1234567890abcdef12",
		Email:   "a@example.com",
	}, nil)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "duplicate_config" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestToggleMonitorUpdatesState(t *testing.T) {
	service := &fakeMonitorService{}
	router := newTestRouter(service, "")

	recorder := doJSON(t, router, "PATCH", "/api/monitor", ToggleMonitorRequest{
		ID:       "mon-1",
		IsActive: false,
	}, nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if service.toggledID != "mon-1" || service.toggledActive {
		t.Errorf("service toggled %q active=%v", service.toggledID, service.toggledActive)
	}
}

func TestToggleMonitorRequiresID(t *testing.T) {
	router := newTestRouter(&fakeMonitorService{}, "")

	recorder := doJSON(t, router, "PATCH", "/api/monitor", ToggleMonitorRequest{IsActive: true}, nil)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "missing_id" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestToggleMonitorUnknownID(t *testing.T) {
	service := &fakeMonitorService{toggleErr: monitor.ErrNotFound}
	router := newTestRouter(service, "")

	recorder := doJSON(t, router, "PATCH", "/api/monitor", ToggleMonitorRequest{
		ID:       "mon-404",
		IsActive: true,
	}, nil)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "config_not_found" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestDeleteMonitorRemovesConfig(t *testing.T) {
	service := &fakeMonitorService{}
	router := newTestRouter(service, "")

	recorder := doJSON(t, router, "DELETE", "/api/monitor", DeleteMonitorRequest{ID: "mon-1"}, nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if service.deletedID != "mon-1" {
		t.Errorf("service deleted %q", service.deletedID)
	}
}

func TestDeleteMonitorUnknownID(t *testing.T) {
	service := &fakeMonitorService{deleteErr: monitor.ErrNotFound}
	router := newTestRouter(service, "")

	recorder := doJSON(t, router, "DELETE", "/api/monitor", DeleteMonitorRequest{ID: "mon-404"}, nil)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestListMonitorsReturnsAllConfigs(t *testing.T) {
	service := &fakeMonitorService{
		configs: []model.MonitorConfig{
			{ID: "mon-1", Address: "0xaaa", Email: "a@example.com", IsActive: true},
			{ID: "mon-2", Address: "0xbbb", Email: "b@example.com"},
		},
	}
	router := newTestRouter(service, "")

	req := httptest.NewRequest("GET", "/api/monitor", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var resp ListMonitorsResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(resp.Configs))
	}
	if resp.Configs[0].ID != "mon-1" || resp.Configs[1].ID != "mon-2" {
		t.Errorf("unexpected configs: %+v", resp.Configs)
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&fakeMonitorService{}, "")

	req := httptest.NewRequest("GET", "/api/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "healthy") {
		t.Errorf("unexpected health body: %s", recorder.Body.String())
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, payload WebhookPayload) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal webhook payload: %v", err)
	}
	return body
}

func TestWebhookRequiresSignatureHeader(t *testing.T) {
	router := newTestRouter(&fakeMonitorService{}, "topsecret")

	body := webhookBody(t, WebhookPayload{Type: eventTypeAddressActivity})
	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, nil)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "missing_signature" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router := newTestRouter(&fakeMonitorService{}, "topsecret")

	body := webhookBody(t, WebhookPayload{Type: eventTypeAddressActivity})
	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, map[string]string{
		"x-signature": "deadbeef",
	})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "invalid_signature" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestWebhookAddressActivityNotifiesMonitoredAddress(t *testing.T) {
	service := &fakeMonitorService{}
	router := newTestRouter(service, "topsecret")

	watched := "0xabcdef1234567890abcdef1234567890abcdef12"
	body := webhookBody(t, WebhookPayload{
		Type:    eventTypeAddressActivity,
		Address: watched,
		Transaction: &WebhookTransaction{
			Hash:  "0xfeed",
			From:  "0x4444444444444444444444444444444444444444",
			To:    watched,
			Value: "1.5",
			Token: "USDT",
		},
	})

	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, map[string]string{
		"x-signature": signBody("topsecret", body),
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(service.notifies) != 1 {
		t.Fatalf("expected 1 notify call, got %d", len(service.notifies))
	}

	call := service.notifies[0]
	if call.address != watched {
		t.Errorf("notified address %q", call.address)
	}
	if call.tx.Direction != model.DirectionIncoming {
		t.Errorf("expected incoming direction, got %q", call.tx.Direction)
	}
	if call.tx.Value != "1.5" || call.tx.Token != "USDT" {
		t.Errorf("unexpected event: %+v", call.tx)
	}
}

func TestWebhookAddressActivityOutgoingDirection(t *testing.T) {
	service := &fakeMonitorService{}
	router := newTestRouter(service, "")

	watched := "0xABCDEF1234567890abcdef1234567890abcdef12"
	body := webhookBody(t, WebhookPayload{
		Type:    eventTypeAddressActivity,
		Address: watched,
		Transaction: &WebhookTransaction{
			Hash: "0xfeed",
			From: strings.ToLower(watched),
			To:   "0x4444444444444444444444444444444444444444",
		},
	})

	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, map[string]string{
		"x-signature": "anything-without-a-configured-secret",
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if len(service.notifies) != 1 {
		t.Fatalf("expected 1 notify call, got %d", len(service.notifies))
	}
	if service.notifies[0].tx.Direction != model.DirectionOutgoing {
		t.Errorf("expected outgoing direction, got %q", service.notifies[0].tx.Direction)
	}
}

func TestWebhookAddressActivityRequiresTransaction(t *testing.T) {
	router := newTestRouter(&fakeMonitorService{}, "")

	body := webhookBody(t, WebhookPayload{
		Type:    eventTypeAddressActivity,
		Address: "0xabcdef1234567890abcdef1234567890abcdef12",
	})
	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, map[string]string{
		"x-signature": "sig",
	})

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "invalid_payload" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}

func TestWebhookTokenTransferNotifiesBothSides(t *testing.T) {
	service := &fakeMonitorService{}
	router := newTestRouter(service, "")

	from := "0x1111111111111111111111111111111111111111"
	to := "0x2222222222222222222222222222222222222222"
	body := webhookBody(t, WebhookPayload{
		Type:  eventTypeTokenTransfer,
		Hash:  "0xfeed",
		From:  from,
		To:    to,
		Value: "42",
		Token: "CAKE",
	})

	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, map[string]string{
		"x-signature": "sig",
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(service.notifies) != 2 {
		t.Fatalf("expected 2 notify calls, got %d", len(service.notifies))
	}

	if service.notifies[0].address != to || service.notifies[0].tx.Direction != model.DirectionIncoming {
		t.Errorf("unexpected first notify: %+v", service.notifies[0])
	}
	if service.notifies[1].address != from || service.notifies[1].tx.Direction != model.DirectionOutgoing {
		t.Errorf("unexpected second notify: %+v", service.notifies[1])
	}
}

func TestWebhookTokenTransferSelfTransferNotifiesOnce(t *testing.T) {
	service := &fakeMonitorService{}
	router := newTestRouter(service, "")

	addr := "0xabcdef1234567890abcdef1234567890abcdef12"
	body := webhookBody(t, WebhookPayload{
		Type: eventTypeTokenTransfer,
		Hash: "0xfeed",
		From: "0x" + strings.ToUpper(addr[2:]),
		To:   addr,
	})

	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, map[string]string{
		"x-signature": "sig",
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if len(service.notifies) != 1 {
		t.Fatalf("self transfer should notify once, got %d", len(service.notifies))
	}
	if service.notifies[0].tx.Direction != model.DirectionIncoming {
		t.Errorf("self transfer should report incoming, got %q", service.notifies[0].tx.Direction)
	}
}

func TestWebhookRejectsUnknownEventType(t *testing.T) {
	router := newTestRouter(&fakeMonitorService{}, "")

	body := webhookBody(t, WebhookPayload{Type: "NFT_ACTIVITY"})
	recorder := doJSON(t, router, "POST", "/api/monitor/webhook", body, map[string]string{
		"x-signature": "sig",
	})

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Error != "unknown_event_type" {
		t.Errorf("unexpected error code %q", resp.Error)
	}
}
