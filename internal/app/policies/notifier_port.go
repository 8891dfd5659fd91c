package policies

import "context"

type Email struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a rendered email. Callers treat failures as best-effort.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}
