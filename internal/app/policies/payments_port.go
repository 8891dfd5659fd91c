package policies

import (
	"context"
	"errors"
	"fmt"

	"rentacar/internal/domain/shared/money"
)

var (
	// ErrSignatureInvalid rejects a webhook delivery outright.
	ErrSignatureInvalid = errors.New("payments: webhook signature invalid")
	ErrPaymentsDisabled = errors.New("payments: provider not configured")
)

// ProviderError wraps any failed outbound call to the payment provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payments: %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type CheckoutRequest struct {
	Amount      money.Money
	ProductName string
	SuccessURL  string
	CancelURL   string
	Email       string
	Metadata    map[string]string
}

// CheckoutSession is the provider view of a hosted checkout.
type CheckoutSession struct {
	ID             string
	URL            string
	PaymentStatus  string
	TransactionRef string
	Metadata       map[string]string
}

// PaymentEvent is a verified webhook delivery reduced to what the
// reconciler needs. Handled is false for event types the core ignores.
type PaymentEvent struct {
	ID             string
	Type           string
	Handled        bool
	TransactionRef string
	PaymentStatus  string
	Metadata       map[string]string
}

type PaymentsPort interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (PaymentEvent, error)
	Refund(ctx context.Context, transactionRef string, amount money.Money) error
}
