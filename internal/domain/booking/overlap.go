package booking

import "rentacar/internal/domain/shared/daterange"

// FindOverlap scans every booking in existing and returns the first one
// whose range overlaps rng, or nil. Cancelled bookings never block; deleted
// ones block only when includeDeleted is set. The scan makes no assumption
// about ordering.
func FindOverlap(existing []*Booking, rng daterange.DateRange, includeDeleted bool) *Booking {
	for _, b := range existing {
		if b == nil || b.Status == StatusCancelled {
			continue
		}
		if b.Deleted && !includeDeleted {
			continue
		}
		if b.Range.Overlaps(rng) {
			return b
		}
	}
	return nil
}
