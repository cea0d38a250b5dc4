package notifier

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/config"
)

// SendgridSender delivers mail through the SendGrid API.
type SendgridSender struct {
	client *sendgrid.Client
	from   string
	logger *zap.Logger
}

func NewSendgridSender(cfg config.EmailConfig, logger *zap.Logger) *SendgridSender {
	return &SendgridSender{
		client: sendgrid.NewSendClient(cfg.SendgridAPIKey),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail("walletwatch", s.from)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send failed: status %d: %s", resp.StatusCode, resp.Body)
	}

	s.logger.Debug("Delivered email via SendGrid", zap.String("to", msg.To), zap.Int("status", resp.StatusCode))
	return nil
}

var _ Sender = (*SendgridSender)(nil)
