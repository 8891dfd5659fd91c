package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	"rentacar/internal/app/handlers/availability"
	"rentacar/internal/app/handlers/checkout"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
)

const scheduleFromPaymentKey = "payments.schedule"

var ErrTransactionRefRequired = errors.New("payments: transaction reference required")

// ScheduleFromPaymentCommand turns a captured payment into a booking. The
// transaction reference is the idempotency key.
type ScheduleFromPaymentCommand struct {
	TransactionRef string
	PaymentStatus  string
	Metadata       checkout.Metadata
}

func (c ScheduleFromPaymentCommand) Key() string { return scheduleFromPaymentKey }

func (c ScheduleFromPaymentCommand) Validate() error {
	if strings.TrimSpace(c.TransactionRef) == "" {
		return ErrTransactionRefRequired
	}
	return nil
}

type ScheduleFromPaymentResult struct {
	Booking  dto.Booking
	Replayed bool
}

type ScheduleFromPaymentHandler struct {
	UoWFactory  uow.UoWFactory
	Checker     availability.Checker
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	IDGenerator func() string
	Now         func() time.Time
}

func (h *ScheduleFromPaymentHandler) Handle(ctx context.Context, cmd ScheduleFromPaymentCommand) (*ScheduleFromPaymentResult, error) {
	var result *ScheduleFromPaymentResult
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		existing, err := unit.Bookings().ByTransactionRef(ctx, cmd.TransactionRef)
		switch {
		case err == nil:
			result = &ScheduleFromPaymentResult{Booking: mapWithCar(ctx, unit, existing), Replayed: true}
			return nil
		case !errors.Is(err, domainbooking.ErrNotFound):
			return err
		}

		meta := cmd.Metadata
		busy, err := h.Checker.HasOverlap(ctx, unit.Bookings(), meta.CarID, meta.Range, true)
		if err != nil {
			return err
		}
		if busy {
			return ErrConflictAfterPayment
		}

		b, err := domainbooking.NewScheduled(domainbooking.CreateParams{
			ID:             domainbooking.BookingID(h.newID()),
			CarID:          meta.CarID,
			UserID:         meta.UserID,
			Renter:         meta.Renter,
			Range:          meta.Range,
			Total:          meta.Total,
			TransactionRef: cmd.TransactionRef,
			PaymentStatus:  cmd.PaymentStatus,
			CreatedAt:      h.now(),
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			if errors.Is(err, domainbooking.ErrOverlap) {
				return ErrConflictAfterPayment
			}
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.PullEvents()); err != nil {
			return err
		}
		result = &ScheduleFromPaymentResult{Booking: mapWithCar(ctx, unit, b)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *ScheduleFromPaymentHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *ScheduleFromPaymentHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	return uuid.NewString()
}

// mapWithCar renders the read model; a missing car only drops the summary.
func mapWithCar(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking) dto.Booking {
	car, err := unit.Cars().ByID(ctx, b.CarID)
	if err != nil {
		return dto.MapBooking(b, nil)
	}
	return dto.MapBooking(b, car)
}

var _ commands.Handler[ScheduleFromPaymentCommand, *ScheduleFromPaymentResult] = (*ScheduleFromPaymentHandler)(nil)
