package availability

import (
	"context"
	"errors"
	"time"

	"rentacar/internal/app/dto"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/uow"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "availability.check"

var ErrCarIDRequired = errors.New("availability: car id required")

type CheckAvailabilityQuery struct {
	CarID string
	Start time.Time
	End   time.Time
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

func (q CheckAvailabilityQuery) Validate() error {
	if q.CarID == "" {
		return ErrCarIDRequired
	}
	_, err := daterange.New(q.Start, q.End)
	return err
}

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Checker    Checker
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	rng, err := daterange.New(q.Start, q.End)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	carID := domaincars.CarID(q.CarID)
	if _, err := unit.Cars().ByID(execCtx, carID); err != nil {
		return dto.Availability{}, err
	}
	busy, err := h.Checker.HasOverlap(execCtx, unit.Bookings(), carID, rng, true)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.Availability{CarID: q.CarID, Start: rng.Start, End: rng.End, Available: !busy}, nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
