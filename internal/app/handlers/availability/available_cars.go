package availability

import (
	"context"
	"sort"
	"time"

	"rentacar/internal/app/dto"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/shared/daterange"
)

const availableCarsKey = "availability.cars"

// AvailableCarsQuery lists active cars that are free for the whole range.
type AvailableCarsQuery struct {
	Start time.Time
	End   time.Time
}

func (q AvailableCarsQuery) Key() string { return availableCarsKey }

func (q AvailableCarsQuery) Validate() error {
	_, err := daterange.New(q.Start, q.End)
	return err
}

type AvailableCarsHandler struct {
	UoWFactory uow.UoWFactory
	Checker    Checker
}

func (h *AvailableCarsHandler) Handle(ctx context.Context, q AvailableCarsQuery) (dto.AvailableCars, error) {
	rng, err := daterange.New(q.Start, q.End)
	if err != nil {
		return dto.AvailableCars{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.AvailableCars{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	active, err := unit.Cars().ListActive(execCtx)
	if err != nil {
		return dto.AvailableCars{}, err
	}
	out := dto.AvailableCars{Start: rng.Start, End: rng.End, Items: make([]dto.CarSummary, 0, len(active))}
	for _, car := range active {
		busy, err := h.Checker.HasOverlap(execCtx, unit.Bookings(), car.ID, rng, true)
		if err != nil {
			return dto.AvailableCars{}, err
		}
		if !busy {
			out.Items = append(out.Items, dto.MapCar(car))
		}
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	return out, nil
}

var _ queries.Handler[AvailableCarsQuery, dto.AvailableCars] = (*AvailableCarsHandler)(nil)
