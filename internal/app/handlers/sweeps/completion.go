package sweeps

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentacar/internal/app/commands"
	bookinghandlers "rentacar/internal/app/handlers/booking"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
)

// CompletionSweep moves every scheduled booking whose end has passed to
// COMPLETED. Each booking is completed in its own command so one failure
// does not hold back the rest of the batch.
type CompletionSweep struct {
	Bus        commands.Bus
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (s *CompletionSweep) Name() string { return "booking-completion" }

func (s *CompletionSweep) Run(ctx context.Context, now time.Time) error {
	_, err := s.Sweep(ctx, now)
	return err
}

// Sweep returns how many bookings were completed.
func (s *CompletionSweep) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := s.listDue(ctx, now)
	if err != nil {
		return 0, err
	}
	completed := 0
	var errs []error
	for _, id := range due {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		res, err := commands.Dispatch[bookinghandlers.CompleteBookingCommand, *bookinghandlers.CompleteBookingResult](
			ctx, s.Bus, bookinghandlers.CompleteBookingCommand{BookingID: string(id), At: now})
		if err != nil {
			s.logger().Error("complete booking failed", "booking_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		if res != nil && res.Completed {
			completed++
			s.logger().Info("booking completed", "booking_id", id, "late_penalty", res.LatePenalty)
		}
	}
	return completed, errors.Join(errs...)
}

func (s *CompletionSweep) listDue(ctx context.Context, now time.Time) ([]domainbooking.BookingID, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, s.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookings, err := unit.Bookings().ListDueForCompletion(execCtx, now)
	if err != nil {
		return nil, err
	}
	ids := make([]domainbooking.BookingID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (s *CompletionSweep) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
