package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/model"
)

const (
	signatureHeader = "x-signature"

	eventTypeAddressActivity = "ADDRESS_ACTIVITY"
	eventTypeTokenTransfer   = "TOKEN_TRANSFER"
)

// WebhookHandler receives push notifications from third-party chain-data
// providers (Alchemy/Moralis/QuickNode style) and fans them out to the
// interested monitor configs.
type WebhookHandler struct {
	service MonitorService
	secret  string
	logger  *zap.Logger
}

func NewWebhookHandler(service MonitorService, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, secret: secret, logger: logger}
}

// HandleWebhook handles POST /api/monitor/webhook
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		h.writeErrorResponse(w, http.StatusUnauthorized, "missing_signature", "Missing signature header")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Failed to read request body")
		return
	}

	if h.secret != "" && !h.verifySignature(body, signature) {
		h.writeErrorResponse(w, http.StatusUnauthorized, "invalid_signature", "Signature verification failed")
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	switch payload.Type {
	case eventTypeAddressActivity:
		h.handleAddressActivity(w, r, payload)
	case eventTypeTokenTransfer:
		h.handleTokenTransfer(w, r, payload)
	default:
		h.writeErrorResponse(w, http.StatusBadRequest, "unknown_event_type", "Unknown webhook event type")
	}
}

func (h *WebhookHandler) handleAddressActivity(w http.ResponseWriter, r *http.Request, payload WebhookPayload) {
	if payload.Address == "" || payload.Transaction == nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_payload", "Address activity requires address and transaction")
		return
	}

	tx := payload.Transaction
	event := model.TransactionEvent{
		Hash:      tx.Hash,
		From:      tx.From,
		To:        tx.To,
		Value:     tx.Value,
		Token:     tx.Token,
		Timestamp: time.Now().UTC(),
		Direction: directionFor(payload.Address, tx.From, tx.To),
	}

	h.logger.Info("Webhook address activity",
		zap.String("address", payload.Address),
		zap.String("tx_hash", tx.Hash))

	if err := h.service.NotifyAddress(r.Context(), payload.Address, event); err != nil {
		h.logger.Error("Failed to process address activity", zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "webhook_error", "Webhook processing failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleTokenTransfer(w http.ResponseWriter, r *http.Request, payload WebhookPayload) {
	if payload.Hash == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_payload", "Token transfer requires a transaction hash")
		return
	}

	h.logger.Info("Webhook token transfer",
		zap.String("from", payload.From),
		zap.String("to", payload.To),
		zap.String("tx_hash", payload.Hash))

	base := model.TransactionEvent{
		Hash:      payload.Hash,
		From:      payload.From,
		To:        payload.To,
		Value:     payload.Value,
		Token:     payload.Token,
		Timestamp: time.Now().UTC(),
	}

	// Both sides of the transfer may be monitored. A to-side match is
	// reported as incoming, mirroring the watcher's direction policy.
	if payload.To != "" {
		event := base
		event.Direction = model.DirectionIncoming
		if err := h.service.NotifyAddress(r.Context(), payload.To, event); err != nil {
			h.logger.Error("Failed to process token transfer", zap.Error(err))
			h.writeErrorResponse(w, http.StatusInternalServerError, "webhook_error", "Webhook processing failed")
			return
		}
	}

	if payload.From != "" && !strings.EqualFold(payload.From, payload.To) {
		event := base
		event.Direction = model.DirectionOutgoing
		if err := h.service.NotifyAddress(r.Context(), payload.From, event); err != nil {
			h.logger.Error("Failed to process token transfer", zap.Error(err))
			h.writeErrorResponse(w, http.StatusInternalServerError, "webhook_error", "Webhook processing failed")
			return
		}
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func directionFor(monitored, from, to string) model.Direction {
	if strings.EqualFold(monitored, to) {
		return model.DirectionIncoming
	}
	if strings.EqualFold(monitored, from) {
		return model.DirectionOutgoing
	}
	// Provider pushed activity that names the address indirectly
	// (internal call, contract interaction). Report as incoming.
	return model.DirectionIncoming
}

func (h *WebhookHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (h *WebhookHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
