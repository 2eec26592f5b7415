package service

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"lexpost/config"
)

// EmailMessage is one outgoing letter email.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPEmailService delivers mail through an SMTP relay.
type SMTPEmailService struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPEmailService(cfg config.EmailConfig) *SMTPEmailService {
	return &SMTPEmailService{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
	}
}

func (s *SMTPEmailService) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	if s.fromName != "" {
		m.SetAddressHeader("From", s.from, s.fromName)
	} else {
		m.SetHeader("From", s.from)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogEmailService records messages instead of sending them; used when SMTP is not configured.
type LogEmailService struct {
	log *slog.Logger
}

func NewLogEmailService(log *slog.Logger) *LogEmailService {
	return &LogEmailService{log: log}
}

func (s *LogEmailService) Send(_ context.Context, msg EmailMessage) error {
	s.log.Info("email not sent, smtp not configured",
		"to", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTMLBody),
	)
	return nil
}

// NewEmailSender picks SMTP delivery when a host is configured.
func NewEmailSender(cfg config.EmailConfig, log *slog.Logger) EmailSender {
	if cfg.SMTPHost == "" {
		return NewLogEmailService(log)
	}
	return NewSMTPEmailService(cfg)
}
