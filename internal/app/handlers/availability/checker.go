package availability

import (
	"context"

	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
)

// Checker answers whether a car is already reserved over a range. It only
// reads through the repository it is given.
type Checker struct{}

func (Checker) HasOverlap(ctx context.Context, repo domainbooking.Repository, carID domaincars.CarID, rng daterange.DateRange, excludeDeleted bool) (bool, error) {
	existing, err := repo.ListByCar(ctx, carID)
	if err != nil {
		return false, err
	}
	return domainbooking.FindOverlap(existing, rng, !excludeDeleted) != nil, nil
}
