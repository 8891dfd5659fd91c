package booking

import (
	"time"

	"rentacar/internal/domain/shared/money"
)

const (
	DefaultCancellationPenaltyPercent = 10
	DefaultLateRatePerHour            = int64(1000)
)

type CancellationPolicy struct {
	PenaltyPercent int
}

type CancellationQuote struct {
	Penalty money.Money
	Refund  money.Money
	// Refundable is false when no payment was captured for the booking.
	Refundable bool
}

// Quote computes penalty and refund without mutating the booking. Unpaid
// bookings cancel for free with nothing to refund.
func (p CancellationPolicy) Quote(b *Booking) (CancellationQuote, error) {
	if b.Status != StatusScheduled || b.Deleted {
		return CancellationQuote{}, ErrInvalidState
	}
	zero := money.Zero(b.Total.Currency)
	if !b.Paid() {
		return CancellationQuote{Penalty: zero, Refund: zero}, nil
	}
	penalty := b.Total.Percent(clampPercent(p.PenaltyPercent))
	refund, err := b.Total.Sub(penalty)
	if err != nil {
		return CancellationQuote{}, err
	}
	return CancellationQuote{Penalty: penalty, Refund: refund, Refundable: refund.Amount > 0}, nil
}

// LatePolicy charges RatePerHour minor units for every hour past the end,
// pro-rated, once the return is later than Grace.
type LatePolicy struct {
	RatePerHour int64
	Grace       time.Duration
}

func (p LatePolicy) Accrue(end, now time.Time, currency string) money.Money {
	late := now.Sub(end)
	if late <= 0 || late <= p.Grace || p.RatePerHour <= 0 {
		return money.Zero(currency)
	}
	hours := int64(late / time.Hour)
	rem := int64(late % time.Hour)
	amount := p.RatePerHour*hours + p.RatePerHour*rem/int64(time.Hour)
	return money.Money{Amount: amount, Currency: money.Zero(currency).Currency}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
