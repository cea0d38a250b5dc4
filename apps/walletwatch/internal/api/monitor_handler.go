package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/model"
	"walletwatch/apps/walletwatch/internal/monitor"
)

// MonitorService is the registry surface the handlers depend on.
type MonitorService interface {
	Create(address, email, label string) (*model.MonitorConfig, error)
	Toggle(id string, active bool) (*model.MonitorConfig, error)
	Delete(id string) error
	List() ([]model.MonitorConfig, error)
	NotifyAddress(ctx context.Context, address string, tx model.TransactionEvent) error
}

// MonitorHandler handles the monitor CRUD endpoints
type MonitorHandler struct {
	service MonitorService
	logger  *zap.Logger
}

func NewMonitorHandler(service MonitorService, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{service: service, logger: logger}
}

// CreateMonitor handles POST /api/monitor
func (h *MonitorHandler) CreateMonitor(w http.ResponseWriter, r *http.Request) {
	var req CreateMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	cfg, err := h.service.Create(req.Address, req.Email, req.Label)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response := toMonitorResponse(*cfg)
	h.writeJSONResponse(w, http.StatusCreated, MessageResponse{
		Message: "Monitor config created",
		Config:  &response,
	})
}

// ToggleMonitor handles PATCH /api/monitor
func (h *MonitorHandler) ToggleMonitor(w http.ResponseWriter, r *http.Request) {
	var req ToggleMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if req.ID == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing_id", "Monitor id is required")
		return
	}

	cfg, err := h.service.Toggle(req.ID, req.IsActive)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response := toMonitorResponse(*cfg)
	h.writeJSONResponse(w, http.StatusOK, MessageResponse{
		Message: "Monitor state updated",
		Config:  &response,
	})
}

// DeleteMonitor handles DELETE /api/monitor
func (h *MonitorHandler) DeleteMonitor(w http.ResponseWriter, r *http.Request) {
	var req DeleteMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if req.ID == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing_id", "Monitor id is required")
		return
	}

	if err := h.service.Delete(req.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, MessageResponse{Message: "Monitor config deleted"})
}

// ListMonitors handles GET /api/monitor
func (h *MonitorHandler) ListMonitors(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.List()
	if err != nil {
		h.logger.Error("Failed to list monitor configs", zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to list monitor configs")
		return
	}

	response := ListMonitorsResponse{Configs: make([]MonitorResponse, 0, len(configs))}
	for _, cfg := range configs {
		response.Configs = append(response.Configs, toMonitorResponse(cfg))
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeServiceError maps registry errors onto HTTP status codes
func (h *MonitorHandler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *monitor.ValidationError
	switch {
	case errors.As(err, &ve):
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_"+ve.Field, ve.Error())
	case errors.Is(err, monitor.ErrDuplicateConfig):
		h.writeErrorResponse(w, http.StatusConflict, "duplicate_config", "This address and email pair is already monitored")
	case errors.Is(err, monitor.ErrNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, "config_not_found", "Monitor config not found")
	default:
		h.logger.Error("Monitor operation failed", zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Monitor operation failed")
	}
}

// writeJSONResponse writes a JSON response with the specified status code
func (h *MonitorHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes an error response
func (h *MonitorHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
