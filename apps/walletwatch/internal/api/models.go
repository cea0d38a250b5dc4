package api

import (
	"time"

	"walletwatch/apps/walletwatch/internal/model"
)

// CreateMonitorRequest represents the request body for registering a monitor
type CreateMonitorRequest struct {
	Address string `json:"address"`
	Email   string `json:"email"`
	Label   string `json:"label,omitempty"`
}

// ToggleMonitorRequest represents the request body for activating or
// deactivating a monitor
type ToggleMonitorRequest struct {
	ID       string `json:"id"`
	IsActive bool   `json:"isActive"`
}

// DeleteMonitorRequest represents the request body for removing a monitor
type DeleteMonitorRequest struct {
	ID string `json:"id"`
}

// MonitorResponse represents one monitor config in API responses
type MonitorResponse struct {
	ID               string     `json:"id"`
	Address          string     `json:"address"`
	Email            string     `json:"email"`
	Label            string     `json:"label"`
	IsActive         bool       `json:"isActive"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastNotification *time.Time `json:"lastNotification,omitempty"`
}

// ListMonitorsResponse wraps the full config list
type ListMonitorsResponse struct {
	Configs []MonitorResponse `json:"configs"`
}

// MessageResponse carries a human-readable success message
type MessageResponse struct {
	Message string           `json:"message"`
	Config  *MonitorResponse `json:"config,omitempty"`
}

// ErrorResponse represents the API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WebhookTransaction is the transaction record carried by a third-party
// push notification. Value is already a decimal string.
type WebhookTransaction struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Token string `json:"token"`
}

// WebhookPayload is the envelope posted by third-party chain-data
// providers. Type discriminates the event shape.
type WebhookPayload struct {
	Type        string              `json:"type"`
	Address     string              `json:"address,omitempty"`
	Transaction *WebhookTransaction `json:"transaction,omitempty"`

	// TOKEN_TRANSFER events carry the transfer fields inline.
	Hash  string `json:"hash,omitempty"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Value string `json:"value,omitempty"`
	Token string `json:"token,omitempty"`
}

func toMonitorResponse(cfg model.MonitorConfig) MonitorResponse {
	return MonitorResponse{
		ID:               cfg.ID,
		Address:          cfg.Address,
		Email:            cfg.Email,
		Label:            cfg.Label,
		IsActive:         cfg.IsActive,
		CreatedAt:        cfg.CreatedAt,
		LastNotification: cfg.LastNotification,
	}
}
