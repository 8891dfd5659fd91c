package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"rentacar/internal/app/policies"
	"rentacar/internal/domain/shared/money"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

type sessionAPI interface {
	New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
	Get(id string, params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

type refundAPI interface {
	New(params *stripego.RefundParams) (*stripego.Refund, error)
}

// Adapter implements policies.PaymentsPort on Stripe Checkout. The payment
// intent id is used as the transaction reference on every path.
type Adapter struct {
	sessions      sessionAPI
	refunds       refundAPI
	webhookSecret string
}

func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, policies.ErrPaymentsDisabled
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sc := client.New(cfg.SecretKey, stripego.NewBackends(&http.Client{Timeout: timeout}))
	return &Adapter{sessions: sc.CheckoutSessions, refunds: sc.Refunds, webhookSecret: cfg.WebhookSecret}, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, req policies.CheckoutRequest) (policies.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Mode: stripego.String(string(stripego.CheckoutSessionModePayment)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(strings.ToLower(req.Amount.Currency)),
				UnitAmount: stripego.Int64(req.Amount.Amount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(req.ProductName),
				},
			},
			Quantity: stripego.Int64(1),
		}},
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripego.String(req.Email)
	}
	params.Context = ctx
	params.Metadata = req.Metadata

	session, err := a.sessions.New(params)
	if err != nil {
		return policies.CheckoutSession{}, providerError("create checkout session", err)
	}
	return toSession(session), nil
}

func (a *Adapter) GetCheckoutSession(ctx context.Context, sessionID string) (policies.CheckoutSession, error) {
	if sessionID == "" {
		return policies.CheckoutSession{}, providerError("get checkout session", errors.New("session id required"))
	}
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	session, err := a.sessions.Get(sessionID, params)
	if err != nil {
		return policies.CheckoutSession{}, providerError("get checkout session", err)
	}
	return toSession(session), nil
}

func (a *Adapter) Refund(ctx context.Context, transactionRef string, amount money.Money) error {
	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(transactionRef),
		Amount:        stripego.Int64(amount.Amount),
		Reason:        stripego.String(string(stripego.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	// A transaction is refunded at most once, so a retried cancellation
	// gets the original refund back instead of a second one.
	params.SetIdempotencyKey(refundIdempotencyKey(transactionRef))
	if _, err := a.refunds.New(params); err != nil {
		return providerError("refund", err)
	}
	return nil
}

func refundIdempotencyKey(transactionRef string) string {
	return "refund-" + transactionRef
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment from payment_intent.succeeded and checkout.session.completed.
func (a *Adapter) ParseWebhook(payload []byte, signature string) (policies.PaymentEvent, error) {
	if a.webhookSecret == "" {
		return policies.PaymentEvent{}, fmt.Errorf("%w: webhook secret not configured", policies.ErrSignatureInvalid)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, a.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: %v", policies.ErrSignatureInvalid, err)
	}
	out := policies.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}
	switch event.Type {
	case stripego.EventTypePaymentIntentSucceeded:
		var intent stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return policies.PaymentEvent{}, fmt.Errorf("stripe: decode payment intent: %w", err)
		}
		out.Handled = true
		out.TransactionRef = intent.ID
		out.PaymentStatus = string(intent.Status)
		out.Metadata = intent.Metadata
	case stripego.EventTypeCheckoutSessionCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return policies.PaymentEvent{}, fmt.Errorf("stripe: decode checkout session: %w", err)
		}
		s := toSession(&session)
		out.Handled = true
		out.TransactionRef = s.TransactionRef
		out.PaymentStatus = s.PaymentStatus
		out.Metadata = s.Metadata
	}
	return out, nil
}

func toSession(s *stripego.CheckoutSession) policies.CheckoutSession {
	out := policies.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.TransactionRef = s.PaymentIntent.ID
		if len(out.Metadata) == 0 {
			out.Metadata = s.PaymentIntent.Metadata
		}
	}
	return out
}

func providerError(op string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		err = fmt.Errorf("%s (status %d, code %s)", stripeErr.Msg, stripeErr.HTTPStatusCode, stripeErr.Code)
	}
	return &policies.ProviderError{Op: op, Err: err}
}

var _ policies.PaymentsPort = (*Adapter)(nil)
