// Package mailer delivers analysis results over SMTP. Delivery outcomes are
// reported as DeliveryResult values rather than Go errors: the tool-dispatch
// loop hands them back to the model as data, success or not.
package mailer

import (
	"context"
	"fmt"
	"net/mail"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
)

const senderName = "Payment Flow Analysis"

// dialer is the slice of gomail the mailer needs, extracted for tests.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer implements schemas.Mailer over a STARTTLS SMTP session.
type SMTPMailer struct {
	cfg    config.EmailConfig
	dialer dialer
	log    *zap.Logger
}

func New(cfg config.EmailConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		log:    logger.Named("mailer"),
	}
}

// Send delivers one message. Validation and transport failures come back as
// an error-status result with the failure text as the message.
func (m *SMTPMailer) Send(ctx context.Context, recipient, subject, body string) (schemas.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return errorResult(err.Error()), nil
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		m.log.Warn("rejecting invalid recipient address", zap.String("recipient", recipient))
		return errorResult(fmt.Sprintf("invalid recipient address %q: %v", recipient, err)), nil
	}
	if m.cfg.Host == "" || m.cfg.Sender == "" {
		return errorResult("email is not configured: host and sender are required"), nil
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.Sender, senderName)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.log.Error("Failed to send email", zap.String("recipient", recipient), zap.Error(err))
		return errorResult(err.Error()), nil
	}

	m.log.Info("Email sent", zap.String("recipient", recipient), zap.String("subject", subject))
	return schemas.DeliveryResult{Status: schemas.DeliverySuccess, Message: "Email sent successfully"}, nil
}

func errorResult(message string) schemas.DeliveryResult {
	return schemas.DeliveryResult{Status: schemas.DeliveryError, Message: message}
}
