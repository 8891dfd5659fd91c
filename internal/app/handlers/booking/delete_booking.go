package booking

import (
	"context"
	"strings"
	"time"

	"rentacar/internal/app/auth"
	"rentacar/internal/app/commands"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
)

const deleteBookingKey = "admin.bookings.delete"

// DeleteBookingCommand hides a booking and frees its slot. Repeating it is a
// no-op.
type DeleteBookingCommand struct {
	BookingID string
}

func (c DeleteBookingCommand) Key() string { return deleteBookingKey }

func (c DeleteBookingCommand) RequiredRole() string { return auth.RoleAdmin }

func (c DeleteBookingCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	return nil
}

type DeleteBookingResult struct {
	BookingID string `json:"booking_id"`
	Deleted   bool   `json:"deleted"`
}

type DeleteBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *DeleteBookingHandler) Handle(ctx context.Context, cmd DeleteBookingCommand) (*DeleteBookingResult, error) {
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		if b.Deleted {
			return nil
		}
		now := time.Now().UTC()
		if h.Now != nil {
			now = h.Now().UTC()
		}
		if err := b.SoftDelete(now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.PullEvents())
	})
	if err != nil {
		return nil, err
	}
	return &DeleteBookingResult{BookingID: cmd.BookingID, Deleted: true}, nil
}

var _ commands.Handler[DeleteBookingCommand, *DeleteBookingResult] = (*DeleteBookingHandler)(nil)
