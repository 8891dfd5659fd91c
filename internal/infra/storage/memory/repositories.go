package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/events"
)

// BookingRepository keeps bookings in process memory. Inserts enforce the
// same constraints as the Mongo store: unique transaction reference and no
// overlap with another reserving booking of the same car.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
	byRef map[string]domainbooking.BookingID
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		items: make(map[domainbooking.BookingID]*domainbooking.Booking),
		byRef: make(map[string]domainbooking.BookingID),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r *BookingRepository) ByTransactionRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[ref]
	if !ok || ref == "" {
		return nil, domainbooking.ErrNotFound
	}
	return cloneBooking(r.items[id]), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Version == 0 {
		if _, exists := r.items[b.ID]; exists {
			return domainbooking.ErrConcurrentUpdate
		}
		if b.TransactionRef != "" {
			if _, taken := r.byRef[b.TransactionRef]; taken {
				return domainbooking.ErrDuplicateTransaction
			}
		}
		if b.Reserves() && domainbooking.FindOverlap(r.carBookings(b.CarID, ""), b.Range, false) != nil {
			return domainbooking.ErrOverlap
		}
		b.Version = 1
		r.items[b.ID] = cloneBooking(b)
		if b.TransactionRef != "" {
			r.byRef[b.TransactionRef] = b.ID
		}
		return nil
	}

	current, ok := r.items[b.ID]
	if !ok {
		return domainbooking.ErrNotFound
	}
	if current.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	r.items[b.ID] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) ListByCar(ctx context.Context, carID domaincars.CarID) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.carBookings(carID, "")), nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if userID != "" && b.UserID == userID {
			out = append(out, cloneBooking(b))
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *BookingRepository) ListDueForCompletion(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.Status == domainbooking.StatusScheduled && !b.Deleted && !b.Range.End.After(now) {
			out = append(out, cloneBooking(b))
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *BookingRepository) carBookings(carID domaincars.CarID, skip domainbooking.BookingID) []*domainbooking.Booking {
	out := make([]*domainbooking.Booking, 0)
	for id, b := range r.items {
		if b.CarID == carID && id != skip {
			out = append(out, b)
		}
	}
	sortByStart(out)
	return out
}

// CarRepository is the in-memory car catalog.
type CarRepository struct {
	mu    sync.RWMutex
	items map[domaincars.CarID]*domaincars.Car
}

func NewCarRepository(seed ...*domaincars.Car) *CarRepository {
	repo := &CarRepository{items: make(map[domaincars.CarID]*domaincars.Car)}
	for _, car := range seed {
		c := *car
		repo.items[car.ID] = &c
	}
	return repo
}

func (r *CarRepository) ByID(ctx context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	car, ok := r.items[id]
	if !ok {
		return nil, domaincars.ErrNotFound
	}
	c := *car
	return &c, nil
}

func (r *CarRepository) Save(ctx context.Context, car *domaincars.Car) error {
	if err := car.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *car
	r.items[car.ID] = &c
	return nil
}

func (r *CarRepository) ListActive(ctx context.Context) ([]*domaincars.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domaincars.Car, 0, len(r.items))
	for _, car := range r.items {
		if car.Active {
			c := *car
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CarRepository) PurgeDeactivatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, car := range r.items {
		if car.Expired(cutoff) {
			delete(r.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.EventRecorder = events.EventRecorder{}
	return &c
}

func cloneAll(in []*domainbooking.Booking) []*domainbooking.Booking {
	out := make([]*domainbooking.Booking, 0, len(in))
	for _, b := range in {
		out = append(out, cloneBooking(b))
	}
	return out
}

func sortByStart(items []*domainbooking.Booking) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Range.Start.Equal(items[j].Range.Start) {
			return items[i].ID < items[j].ID
		}
		return items[i].Range.Start.Before(items[j].Range.Start)
	})
}

var (
	_ domainbooking.Repository = (*BookingRepository)(nil)
	_ domaincars.Repository    = (*CarRepository)(nil)
)
