package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/middleware"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
)

const createBookingKey = "booking.create"

var ErrUserRequired = errors.New("booking: user id required")

// CreateBookingCommand books a car directly, without a payment. The booking
// carries no transaction reference and cancels without a refund.
type CreateBookingCommand struct {
	UserID          string
	CarID           string
	Schedule        domainbooking.Schedule
	Renter          domainbooking.RenterSnapshot
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.BookingCreated{} }

func (c CreateBookingCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserRequired
	}
	return nil
}

type CreateBookingHandler struct {
	UoWFactory  uow.UoWFactory
	Validator   Validator
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	IDGenerator func() string
	Now         func() time.Time
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.BookingCreated, error) {
	var created *domainbooking.Booking
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		now := h.now()
		validated, err := h.Validator.Validate(ctx, domainbooking.Intent{
			CarID:    domaincars.CarID(strings.TrimSpace(cmd.CarID)),
			Schedule: cmd.Schedule,
			Renter:   cmd.Renter,
			UserID:   cmd.UserID,
		}, now)
		if err != nil {
			return err
		}
		b, err := domainbooking.NewScheduled(domainbooking.CreateParams{
			ID:        domainbooking.BookingID(h.newID()),
			CarID:     validated.Car.ID,
			UserID:    cmd.UserID,
			Renter:    cmd.Renter,
			Range:     validated.Range,
			Total:     validated.Car.PriceFor(validated.Range),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			if errors.Is(err, domainbooking.ErrOverlap) {
				return domainbooking.NewValidationError(domainbooking.RuleOverlap)
			}
			return err
		}
		created = b
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.PullEvents())
	})
	if err != nil {
		return nil, err
	}
	return &dto.BookingCreated{
		BookingID: string(created.ID),
		Status:    string(created.Status),
		Total:     dto.MapMoney(created.Total),
	}, nil
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *CreateBookingHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	return uuid.NewString()
}

var _ commands.Handler[CreateBookingCommand, *dto.BookingCreated] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateBookingCommand)(nil)
