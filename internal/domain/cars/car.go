package cars

import (
	"context"
	"errors"
	"time"

	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/money"
)

var (
	ErrNotFound      = errors.New("cars: not found")
	ErrInvalidPrice  = errors.New("cars: daily price must be positive")
	ErrAlreadyActive = errors.New("cars: car already active")
)

type CarID string

// Car is the slice of the catalog the booking core depends on. Catalog CRUD
// lives elsewhere.
type Car struct {
	ID            CarID
	Name          string
	DailyPrice    money.Money
	Active        bool
	DeactivatedAt *time.Time
}

func (c *Car) Validate() error {
	if c.DailyPrice.Amount <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Deactivate retires the car from the catalog and starts the retention clock.
func (c *Car) Deactivate(now time.Time) {
	if !c.Active {
		return
	}
	at := now.UTC()
	c.Active = false
	c.DeactivatedAt = &at
}

func (c *Car) Reactivate() error {
	if c.Active {
		return ErrAlreadyActive
	}
	c.Active = true
	c.DeactivatedAt = nil
	return nil
}

// Expired reports whether an inactive car has passed the retention cutoff.
func (c *Car) Expired(cutoff time.Time) bool {
	if c.Active || c.DeactivatedAt == nil {
		return false
	}
	return !c.DeactivatedAt.After(cutoff)
}

type Repository interface {
	ByID(ctx context.Context, id CarID) (*Car, error)
	Save(ctx context.Context, car *Car) error
	ListActive(ctx context.Context) ([]*Car, error)
	// PurgeDeactivatedBefore hard-deletes inactive cars deactivated at or
	// before cutoff and returns how many were removed.
	PurgeDeactivatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// PriceFor charges the daily price for every started 24h period of rng.
func (c *Car) PriceFor(rng daterange.DateRange) money.Money {
	return c.DailyPrice.Multiply(rng.BillableDays())
}
