// Package mail delivers verification and password reset mail.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/pkg/config"
	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends plain-text mail over SMTP.
type SMTPMailer struct {
	from   string
	dialer sender
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (m *SMTPMailer) message(to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

// Send ignores ctx; gomail has no cancellation.
func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	if err := m.dialer.DialAndSend(m.message(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var (
	_ auth.Mailer = (*SMTPMailer)(nil)
	_ auth.Mailer = (*LogMailer)(nil)
)

// LogMailer writes mail to the log. Used when SMTP is not configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("mail not sent, SMTP disabled", "to", to, "subject", subject, "body", body)
	return nil
}

// New picks the SMTP mailer when it is configured.
func New(cfg config.SMTPConfig, logger *slog.Logger) auth.Mailer {
	if cfg.Enabled() {
		return NewSMTPMailer(cfg)
	}
	return NewLogMailer(logger)
}
