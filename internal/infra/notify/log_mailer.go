package notify

import (
	"context"
	"log/slog"

	"rentacar/internal/app/policies"
)

// LogMailer writes emails to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg policies.Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	return nil
}

var _ policies.Mailer = LogMailer{}
