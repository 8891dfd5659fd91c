package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/money"
)

var now = time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)

func newBooking(t *testing.T, ref string) *Booking {
	t.Helper()
	b, err := NewScheduled(CreateParams{
		ID:             "bk-1",
		CarID:          "car-7",
		UserID:         "user-1",
		Renter:         RenterSnapshot{Name: "Ada", Email: "ada@example.com"},
		Range:          daterange.DateRange{Start: now.Add(24 * time.Hour), End: now.Add(72 * time.Hour)},
		Total:          money.Must(10000, "USD"),
		TransactionRef: ref,
		PaymentStatus:  PaymentStatusPaid,
		CreatedAt:      now,
	})
	require.NoError(t, err)
	return b
}

func TestNewScheduledRecordsEvent(t *testing.T) {
	b := newBooking(t, "pi_1")
	assert.Equal(t, StatusScheduled, b.Status)
	assert.True(t, b.Reserves())
	evs := b.PullEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventScheduled, evs[0].EventName())
	assert.Empty(t, b.PendingEvents())
}

func TestNewScheduledRequiresPositiveTotal(t *testing.T) {
	_, err := NewScheduled(CreateParams{
		ID:    "bk",
		CarID: "car",
		Range: daterange.DateRange{Start: now, End: now.Add(time.Hour)},
		Total: money.Zero("USD"),
	})
	require.Error(t, err)
}

func TestCancellationArithmetic(t *testing.T) {
	b := newBooking(t, "pi_1")
	quote, err := CancellationPolicy{PenaltyPercent: DefaultCancellationPenaltyPercent}.Quote(b)
	require.NoError(t, err)
	assert.Equal(t, "10.00", quote.Penalty.Decimal())
	assert.Equal(t, "90.00", quote.Refund.Decimal())
	assert.True(t, quote.Refundable)

	require.NoError(t, b.Cancel(quote, now))
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, int64(1000), b.Penalty.Amount)
	assert.False(t, b.Reserves())
}

func TestCancelWithoutPaymentIsFree(t *testing.T) {
	b := newBooking(t, "")
	quote, err := CancellationPolicy{PenaltyPercent: 10}.Quote(b)
	require.NoError(t, err)
	assert.True(t, quote.Penalty.IsZero())
	assert.True(t, quote.Refund.IsZero())
	assert.False(t, quote.Refundable)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	b := newBooking(t, "pi_1")
	require.NoError(t, b.Complete(LatePolicy{}, b.Range.End))
	_, err := CancellationPolicy{PenaltyPercent: 10}.Quote(b)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, b.Cancel(CancellationQuote{}, now), ErrInvalidState)
	assert.ErrorIs(t, b.Complete(LatePolicy{}, b.Range.End), ErrInvalidState)
}

func TestCompleteRequiresEndReached(t *testing.T) {
	b := newBooking(t, "pi_1")
	assert.ErrorIs(t, b.Complete(LatePolicy{}, now), ErrNotDue)
}

func TestCompleteAccruesLatePenalty(t *testing.T) {
	b := newBooking(t, "pi_1")
	policy := LatePolicy{RatePerHour: DefaultLateRatePerHour}
	require.NoError(t, b.Complete(policy, b.Range.End.Add(3*time.Hour)))
	assert.Equal(t, StatusCompleted, b.Status)
	assert.Equal(t, 3*DefaultLateRatePerHour, b.Penalty.Amount)
}

func TestLatePolicyGraceAndProRating(t *testing.T) {
	end := now
	p := LatePolicy{RatePerHour: 1000, Grace: 15 * time.Minute}
	assert.True(t, p.Accrue(end, end, "USD").IsZero())
	assert.True(t, p.Accrue(end, end.Add(10*time.Minute), "USD").IsZero())
	assert.Equal(t, int64(1500), p.Accrue(end, end.Add(90*time.Minute), "USD").Amount)
}

func TestSoftDeleteReleasesSlotOnce(t *testing.T) {
	b := newBooking(t, "pi_1")
	b.ClearEvents()
	require.NoError(t, b.SoftDelete(now))
	require.NoError(t, b.SoftDelete(now))
	assert.False(t, b.Reserves())
	assert.Len(t, b.PendingEvents(), 1)
}

func TestRulesOrder(t *testing.T) {
	rules := DefaultRules()
	day := func(d time.Duration) string { return now.Add(d).Format("2006-01-02") }
	clock := now.Format("15:04")

	cases := []struct {
		name string
		s    Schedule
		want Rule
	}{
		{"garbage", Schedule{"nope", clock, day(48 * time.Hour), clock}, RuleParseable},
		{"horizon before past", Schedule{day(31 * 24 * time.Hour), clock, day(-24 * time.Hour), clock}, RuleHorizon},
		{"past", Schedule{day(-24 * time.Hour), clock, day(24 * time.Hour), clock}, RuleNotPast},
		{"return before pickup", Schedule{day(48 * time.Hour), clock, day(24 * time.Hour), clock}, RuleOrder},
		{"equal instants", Schedule{day(24 * time.Hour), clock, day(24 * time.Hour), clock}, RuleOrder},
		{"too short", Schedule{day(24 * time.Hour), "12:00", day(24 * time.Hour), "18:00"}, RuleMinDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rules.Check(tc.s, now)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.want, verr.Rule)
			assert.NotEmpty(t, verr.Reason)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRulesAcceptExactMinimum(t *testing.T) {
	rules := DefaultRules()
	pickup := now.Add(time.Hour)
	rng, err := rules.CheckRange(pickup, pickup.Add(24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, rng.Duration())
}

func TestRulesParseInConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	rules := Rules{Location: loc}
	rng, err := rules.Check(Schedule{
		PickupDate: "2025-01-10", PickupTime: "10:00",
		ReturnDate: "2025-01-12", ReturnTime: "10:00",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC), rng.Start)
}

func TestReasonsAreDistinct(t *testing.T) {
	seen := map[string]Rule{}
	for rule, reason := range reasons {
		prev, dup := seen[reason]
		assert.False(t, dup, "rules %s and %s share a reason", rule, prev)
		seen[reason] = rule
	}
}
