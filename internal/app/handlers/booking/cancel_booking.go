package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rentacar/internal/app/auth"
	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/policies"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
)

const cancelBookingKey = "booking.cancel"

var ErrBookingIDRequired = errors.New("booking: booking id required")

type CancelBookingCommand struct {
	BookingID string
	UserID    string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserRequired
	}
	return nil
}

// CancelBookingHandler refunds the paid share of a booking and then marks it
// cancelled. A failed refund leaves the booking untouched.
type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Policy     domainbooking.CancellationPolicy
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.CancelResult, error) {
	var result *dto.CancelResult
	var refundedRef string
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		if b.Deleted {
			return domainbooking.ErrNotFound
		}
		if !b.OwnedBy(cmd.UserID) {
			return auth.ErrForbidden
		}
		quote, err := h.Policy.Quote(b)
		if err != nil {
			return err
		}
		if quote.Refundable {
			if h.Payments == nil {
				return &policies.ProviderError{Op: "refund", Err: policies.ErrPaymentsDisabled}
			}
			if err := h.Payments.Refund(ctx, b.TransactionRef, quote.Refund); err != nil {
				var providerErr *policies.ProviderError
				if !errors.As(err, &providerErr) {
					err = &policies.ProviderError{Op: "refund", Err: err}
				}
				h.logger().Error("refund failed, booking left scheduled",
					"booking_id", b.ID, "transaction_ref", b.TransactionRef, "error", err)
				return err
			}
			refundedRef = b.TransactionRef
		}
		if err := b.Cancel(quote, h.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.PullEvents()); err != nil {
			return err
		}
		result = &dto.CancelResult{
			BookingID: string(b.ID),
			Status:    string(b.Status),
			Penalty:   dto.MapMoney(quote.Penalty),
			Refund:    dto.MapMoney(quote.Refund),
		}
		return nil
	})
	if err != nil {
		if refundedRef != "" {
			// Covers Save, outbox and commit failures alike. A retry reuses the
			// provider's idempotency key, so it cannot refund twice.
			h.logger().Error("refund issued but cancellation not persisted",
				"booking_id", cmd.BookingID, "transaction_ref", refundedRef, "error", err)
		}
		return nil, err
	}
	return result, nil
}

func (h *CancelBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *CancelBookingHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[CancelBookingCommand, *dto.CancelResult] = (*CancelBookingHandler)(nil)
