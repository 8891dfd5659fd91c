package notify

import (
	"log/slog"

	"rentacar/internal/app/policies"
)

// NewMailer picks SMTP when a relay host is configured and falls back to
// logging the messages.
func NewMailer(cfg SMTPConfig, logger *slog.Logger) (policies.Mailer, error) {
	if cfg.Host == "" {
		return LogMailer{Logger: logger}, nil
	}
	return NewSMTPMailer(cfg)
}
