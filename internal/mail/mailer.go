// Package mail delivers outbound notification email over SMTP.
package mail

import (
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/pramothar/farmwith/internal/config"
)

// ErrNotConfigured means SMTP credentials are missing from configuration
var ErrNotConfigured = errors.New("SMTP settings are not configured")

// Sender delivers plaintext email through a configured SMTP relay
type Sender struct {
	cfg config.SMTPConfig
}

// NewSender creates a sender from SMTP configuration. Whether the sender is
// usable at all is checked per send, so a partially configured deployment
// still boots.
func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

// Configured reports whether a send can be attempted
func (s *Sender) Configured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != ""
}

// Send delivers a plaintext message to a single recipient
func (s *Sender) Send(to, subject, body string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
	}
	if s.cfg.UseTLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
