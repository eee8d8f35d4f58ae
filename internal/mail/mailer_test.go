package mail

import (
	"errors"
	"testing"

	"github.com/pramothar/farmwith/internal/config"
)

func TestSenderUnconfigured(t *testing.T) {
	t.Parallel()

	sender := NewSender(config.SMTPConfig{Port: 587})
	if sender.Configured() {
		t.Fatalf("sender without credentials reported configured")
	}

	err := sender.Send("a@x.com", "subject", "body")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSenderConfigured(t *testing.T) {
	t.Parallel()

	sender := NewSender(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "pass",
		From:     "admin@farmwith.online",
	})
	if !sender.Configured() {
		t.Fatalf("sender with credentials reported unconfigured")
	}
}
