package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	"rentacar/internal/app/handlers/checkout"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/policies"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
)

var (
	// ErrConflictAfterPayment means the payment was captured but the slot is
	// gone. It needs a manual refund and is never resolved automatically.
	ErrConflictAfterPayment = errors.New("payments: car no longer available for a captured payment")
	ErrMalformedMetadata    = checkout.ErrMalformedMetadata
)

type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"
	OutcomeCreated  Outcome = "created"
	OutcomeReplayed Outcome = "replayed"
)

// Confirmation is a provider-verified payment, from either entry point.
type Confirmation struct {
	TransactionRef string
	PaymentStatus  string
	Metadata       map[string]string
}

type Result struct {
	Outcome Outcome
	Booking *dto.Booking
}

func (r *Result) Created() bool  { return r != nil && r.Outcome == OutcomeCreated }
func (r *Result) Replayed() bool { return r != nil && r.Outcome == OutcomeReplayed }

// Reconciler converges the webhook and the browser redirect on one booking
// per transaction reference.
type Reconciler struct {
	Bus        commands.Bus
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Currency   string
	Logger     *slog.Logger
}

// HandleWebhook verifies and reconciles one webhook delivery. Event types the
// core does not act on are acknowledged as ignored.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (*Result, error) {
	if r.Payments == nil {
		return nil, policies.ErrPaymentsDisabled
	}
	event, err := r.Payments.ParseWebhook(payload, signature)
	if err != nil {
		r.logger().Warn("webhook rejected", "error", err)
		return nil, err
	}
	if !event.Handled {
		r.logger().Debug("webhook event ignored", "event_id", event.ID, "type", event.Type)
		return &Result{Outcome: OutcomeIgnored}, nil
	}
	return r.Reconcile(ctx, Confirmation{
		TransactionRef: event.TransactionRef,
		PaymentStatus:  event.PaymentStatus,
		Metadata:       event.Metadata,
	})
}

// ConfirmRedirect fetches the session from the provider and reconciles it.
// Nothing the browser sends besides the session id is trusted.
func (r *Reconciler) ConfirmRedirect(ctx context.Context, sessionID string) (*Result, error) {
	if r.Payments == nil {
		return nil, policies.ErrPaymentsDisabled
	}
	session, err := r.Payments.GetCheckoutSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		var providerErr *policies.ProviderError
		if !errors.As(err, &providerErr) {
			err = &policies.ProviderError{Op: "get checkout session", Err: err}
		}
		return nil, err
	}
	return r.Reconcile(ctx, Confirmation{
		TransactionRef: session.TransactionRef,
		PaymentStatus:  session.PaymentStatus,
		Metadata:       session.Metadata,
	})
}

func (r *Reconciler) Reconcile(ctx context.Context, c Confirmation) (*Result, error) {
	if !isPaid(c.PaymentStatus) {
		return &Result{Outcome: OutcomeIgnored}, nil
	}
	log := r.logger().With("transaction_ref", c.TransactionRef)
	if strings.TrimSpace(c.TransactionRef) == "" {
		err := &checkout.MetadataError{Field: "transaction_ref", Reason: "missing"}
		log.Error("paid confirmation without transaction reference", "error", err)
		return nil, err
	}
	meta, err := checkout.DecodeMetadata(c.Metadata, r.Currency)
	if err != nil {
		log.Error("payment metadata malformed, booking not created", "error", err)
		return nil, err
	}

	cmd := ScheduleFromPaymentCommand{
		TransactionRef: c.TransactionRef,
		PaymentStatus:  domainbooking.PaymentStatusPaid,
		Metadata:       meta,
	}
	res, err := commands.Dispatch[ScheduleFromPaymentCommand, *ScheduleFromPaymentResult](ctx, r.Bus, cmd)
	if errors.Is(err, domainbooking.ErrConcurrentUpdate) {
		// The storage aborted this attempt because another writer touched the
		// same car; the retry sees whatever that writer committed.
		log.Warn("reconcile attempt aborted by a concurrent write, retrying", "error", err)
		res, err = commands.Dispatch[ScheduleFromPaymentCommand, *ScheduleFromPaymentResult](ctx, r.Bus, cmd)
	}
	switch {
	case err == nil:
	case errors.Is(err, domainbooking.ErrDuplicateTransaction), errors.Is(err, ErrConflictAfterPayment):
		// The other entry point may have committed this very payment between
		// our lookup and our insert; its booking then looks like a conflict.
		existing, lookupErr := r.lookup(ctx, c.TransactionRef)
		if lookupErr == nil {
			log.Info("payment already reconciled", "booking_id", existing.ID)
			return &Result{Outcome: OutcomeReplayed, Booking: existing}, nil
		}
		if !errors.Is(lookupErr, domainbooking.ErrNotFound) || errors.Is(err, domainbooking.ErrDuplicateTransaction) {
			return nil, lookupErr
		}
		log.Error("payment captured but car no longer available, manual refund required",
			"car_id", meta.CarID, "start", meta.Range.Start, "end", meta.Range.End, "error", err)
		return nil, err
	default:
		return nil, err
	}

	booking := res.Booking
	if res.Replayed {
		log.Info("payment already reconciled", "booking_id", booking.ID)
		return &Result{Outcome: OutcomeReplayed, Booking: &booking}, nil
	}
	log.Info("booking scheduled from payment", "booking_id", booking.ID, "car_id", booking.Car.ID)
	return &Result{Outcome: OutcomeCreated, Booking: &booking}, nil
}

func (r *Reconciler) lookup(ctx context.Context, ref string) (*dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByTransactionRef(execCtx, ref)
	if err != nil {
		return nil, err
	}
	mapped := mapWithCar(execCtx, unit, b)
	return &mapped, nil
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func isPaid(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case domainbooking.PaymentStatusPaid, "succeeded":
		return true
	}
	return false
}
