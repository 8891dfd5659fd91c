package booking

import (
	"context"
	"strings"
	"time"

	"rentacar/internal/app/commands"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
)

const completeBookingKey = "booking.complete"

// CompleteBookingCommand is dispatched by the completion sweep, one per due
// booking, so each transition commits on its own.
type CompleteBookingCommand struct {
	BookingID string
	At        time.Time
}

func (c CompleteBookingCommand) Key() string { return completeBookingKey }

func (c CompleteBookingCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	return nil
}

type CompleteBookingResult struct {
	BookingID   string
	Completed   bool
	LatePenalty int64
}

type CompleteBookingHandler struct {
	UoWFactory uow.UoWFactory
	Late       domainbooking.LatePolicy
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (*CompleteBookingResult, error) {
	res := &CompleteBookingResult{BookingID: cmd.BookingID}
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		// Already moved on by another replica or a cancellation.
		if b.Status != domainbooking.StatusScheduled || b.Deleted {
			return nil
		}
		if err := b.Complete(h.Late, cmd.At); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		res.Completed = true
		res.LatePenalty = b.Penalty.Amount
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.PullEvents())
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

var _ commands.Handler[CompleteBookingCommand, *CompleteBookingResult] = (*CompleteBookingHandler)(nil)
