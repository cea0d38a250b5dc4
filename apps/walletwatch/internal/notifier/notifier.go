package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/config"
	"walletwatch/apps/walletwatch/internal/model"
)

// ErrUnsupportedProvider is returned when the configured email provider
// is not one of the recognized kinds. It indicates deployment
// misconfiguration and should reach an operator, not an end user.
var ErrUnsupportedProvider = errors.New("unsupported email provider")

// DeliveryError wraps a transport-level send failure after retries are
// exhausted.
type DeliveryError struct {
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("email delivery failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Message is a fully rendered email ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message over one transport. Implementations
// must return a non-nil error on any delivery failure so the caller can
// decide whether the notification counts as sent.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender selects a transport from configuration.
func NewSender(cfg config.EmailConfig, logger *zap.Logger) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPSender(cfg, logger), nil
	case "sendgrid":
		return NewSendgridSender(cfg, logger), nil
	case "ses":
		return NewSESSender(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

const (
	maxSendAttempts  = 3
	sendRetryBackoff = 2 * time.Second
)

// EmailNotifier renders transaction alerts and dispatches them through
// the configured transport with bounded retry.
type EmailNotifier struct {
	sender      Sender
	explorerURL string
	logger      *zap.Logger

	// retryBackoff is overridable in tests
	retryBackoff time.Duration
}

func NewEmailNotifier(sender Sender, explorerURL string, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:       sender,
		explorerURL:  explorerURL,
		logger:       logger,
		retryBackoff: sendRetryBackoff,
	}
}

// SendTransactionAlert renders and delivers an alert for one detected
// transaction. Rendering is deterministic for identical inputs.
func (n *EmailNotifier) SendTransactionAlert(ctx context.Context, to, walletLabel string, tx model.TransactionEvent) error {
	subject, html, text, err := renderTransactionAlert(walletLabel, n.explorerURL, tx)
	if err != nil {
		return fmt.Errorf("failed to render transaction alert: %w", err)
	}

	msg := Message{
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    text,
	}

	var lastErr error
	backoff := n.retryBackoff
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		lastErr = n.sender.Send(ctx, msg)
		if lastErr == nil {
			n.logger.Info("Sent transaction alert",
				zap.String("to", to),
				zap.String("tx_hash", tx.Hash),
				zap.String("direction", string(tx.Direction)),
				zap.Int("attempt", attempt))
			return nil
		}

		n.logger.Warn("Failed to send transaction alert",
			zap.String("to", to),
			zap.String("tx_hash", tx.Hash),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt == maxSendAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return &DeliveryError{Attempts: attempt, Err: ctx.Err()}
		}
		backoff *= 2
	}

	return &DeliveryError{Attempts: maxSendAttempts, Err: lastErr}
}
