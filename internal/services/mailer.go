// internal/services/mailer.go
package services

import (
	"context"
	"fmt"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/retail-backend/internal/config"
)

type MailMessage struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NewMailer returns an SMTP mailer, or a logging one when SMTP is not configured.
func NewMailer(cfg config.EmailConfig) Mailer {
	if cfg.SMTPHost == "" {
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg, timeout: 30 * time.Second}
}

type SMTPMailer struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	e := &email.Email{
		From:    fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromEmail),
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    []byte(msg.HTML),
		Headers: textproto.MIMEHeader{},
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	// email.Send has no context support; bound it from the outside.
	done := make(chan error, 1)
	go func() { done <- e.Send(addr, auth) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: smtp send: %v", ErrTransportFailure, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTransportFailure, ctx.Err())
	case <-time.After(m.timeout):
		return fmt.Errorf("%w: smtp send timed out after %s", ErrTransportFailure, m.timeout)
	}
}

// LogMailer only logs; used when no SMTP server is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg MailMessage) error {
	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Email not configured, message logged")
	return nil
}
