package booking

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"rentacar/internal/app/auth"
	"rentacar/internal/app/dto"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
)

const (
	listMyBookingsKey = "me.bookings.list"
	getBookingKey     = "booking.get"
)

type ListMyBookingsQuery struct {
	UserID string
}

func (q ListMyBookingsQuery) Key() string { return listMyBookingsKey }

func (q ListMyBookingsQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return ErrUserRequired
	}
	return nil
}

type ListMyBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListMyBookingsHandler) Handle(ctx context.Context, q ListMyBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByUser(execCtx, q.UserID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].Range.Start.Before(bookings[j].Range.Start)
	})

	carCache := make(map[domaincars.CarID]*domaincars.Car)
	out := dto.BookingCollection{
		Scheduled: []dto.Booking{},
		Completed: []dto.Booking{},
		Cancelled: []dto.Booking{},
	}
	for _, b := range bookings {
		if b.Deleted {
			continue
		}
		car, ok := carCache[b.CarID]
		if !ok {
			car, err = unit.Cars().ByID(execCtx, b.CarID)
			if err != nil && !errors.Is(err, domaincars.ErrNotFound) {
				return dto.BookingCollection{}, err
			}
			if err != nil && h.Logger != nil {
				h.Logger.Warn("booking references missing car", "booking_id", b.ID, "car_id", b.CarID)
			}
			carCache[b.CarID] = car
		}
		out.Add(dto.MapBooking(b, car))
	}
	return out, nil
}

// GetBookingQuery returns one booking to its owner or to an admin.
type GetBookingQuery struct {
	BookingID string
	UserID    string
	Admin     bool
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) Validate() error {
	if strings.TrimSpace(q.BookingID) == "" {
		return ErrBookingIDRequired
	}
	return nil
}

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	if b.Deleted && !q.Admin {
		return dto.Booking{}, domainbooking.ErrNotFound
	}
	if !q.Admin && !b.OwnedBy(q.UserID) {
		return dto.Booking{}, auth.ErrForbidden
	}
	car, err := unit.Cars().ByID(execCtx, b.CarID)
	if err != nil && !errors.Is(err, domaincars.ErrNotFound) {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b, car), nil
}

var (
	_ queries.Handler[ListMyBookingsQuery, dto.BookingCollection] = (*ListMyBookingsHandler)(nil)
	_ queries.Handler[GetBookingQuery, dto.Booking]               = (*GetBookingHandler)(nil)
)
