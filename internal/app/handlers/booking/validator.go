package booking

import (
	"context"
	"errors"
	"time"

	"rentacar/internal/app/handlers/availability"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
)

// Validated is an intent that passed every rule.
type Validated struct {
	Car   *domaincars.Car
	Range daterange.DateRange
}

// Validator applies the booking rules in order: car exists, date rules, then
// overlap. The first failing rule is reported as *booking.ValidationError.
type Validator struct {
	UoWFactory uow.UoWFactory
	Rules      domainbooking.Rules
	Checker    availability.Checker
}

func (v Validator) Validate(ctx context.Context, intent domainbooking.Intent, now time.Time) (Validated, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, v.UoWFactory)
	if err != nil {
		return Validated{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	car, err := unit.Cars().ByID(execCtx, intent.CarID)
	if err != nil {
		if errors.Is(err, domaincars.ErrNotFound) {
			return Validated{}, domainbooking.NewValidationError(domainbooking.RuleCarExists)
		}
		return Validated{}, err
	}
	if !car.Active {
		return Validated{}, domainbooking.NewValidationError(domainbooking.RuleCarExists)
	}

	rng, err := v.Rules.Check(intent.Schedule, now)
	if err != nil {
		return Validated{}, err
	}

	busy, err := v.Checker.HasOverlap(execCtx, unit.Bookings(), car.ID, rng, true)
	if err != nil {
		return Validated{}, err
	}
	if busy {
		return Validated{}, domainbooking.NewValidationError(domainbooking.RuleOverlap)
	}
	return Validated{Car: car, Range: rng}, nil
}
