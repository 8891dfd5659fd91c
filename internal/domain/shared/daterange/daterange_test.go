package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func span(fromHours, toHours int) DateRange {
	return DateRange{Start: base.Add(time.Duration(fromHours) * time.Hour), End: base.Add(time.Duration(toHours) * time.Hour)}
}

func TestNewRejectsEmptyAndInverted(t *testing.T) {
	_, err := New(base, base)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(base.Add(time.Hour), base)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(time.Time{}, base)
	require.ErrorIs(t, err, ErrInvalidRange)

	loc := time.FixedZone("UTC+2", 2*60*60)
	dr, err := New(base.In(loc), base.Add(time.Hour).In(loc))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, dr.Start.Location())
}

func TestBillableDaysCountsStartedDays(t *testing.T) {
	cases := map[string]struct {
		rng  DateRange
		want int64
	}{
		"exactly one day": {span(0, 24), 1},
		"one hour over":   {span(0, 25), 2},
		"fifty hours":     {span(0, 50), 3},
		"three days":      {span(0, 72), 3},
		"inverted":        {span(10, 0), 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rng.BillableDays())
		})
	}
}

func TestOverlapIsHalfOpen(t *testing.T) {
	a := span(0, 48)
	assert.True(t, a.Overlaps(span(47, 72)))
	assert.True(t, a.Overlaps(span(-5, 1)))
	assert.True(t, a.Overlaps(span(10, 20)))
	assert.False(t, a.Overlaps(span(48, 72)))
	assert.False(t, a.Overlaps(span(-24, 0)))
	assert.True(t, a.Adjacent(span(48, 72)))
	assert.True(t, a.Contains(base))
	assert.False(t, a.Contains(base.Add(48*time.Hour)))
}

func TestOverlapIsSymmetric(t *testing.T) {
	cases := []struct {
		name string
		a, b DateRange
		want bool
	}{
		{"tail overlap", span(0, 48), span(47, 72), true},
		{"head overlap", span(0, 48), span(-5, 1), true},
		{"containment", span(0, 48), span(10, 20), true},
		{"identical", span(0, 48), span(0, 48), true},
		{"same start", span(0, 48), span(0, 24), true},
		{"same end", span(0, 48), span(24, 48), true},
		{"touching after", span(0, 48), span(48, 72), false},
		{"touching before", span(0, 48), span(-24, 0), false},
		{"disjoint", span(0, 24), span(100, 124), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a))
		})
	}
}
