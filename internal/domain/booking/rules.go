package booking

import (
	"errors"
	"strings"
	"time"

	"rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
)

// ErrValidation matches every *ValidationError through errors.Is.
var ErrValidation = errors.New("booking: validation failed")

type Rule string

const (
	RuleCarExists   Rule = "car_exists"
	RuleParseable   Rule = "parseable"
	RuleHorizon     Rule = "horizon"
	RuleNotPast     Rule = "not_past"
	RuleOrder       Rule = "order"
	RuleMinDuration Rule = "min_duration"
	RuleOverlap     Rule = "overlap"
)

var reasons = map[Rule]string{
	RuleCarExists:   "The selected car does not exist.",
	RuleParseable:   "Invalid date or time format.",
	RuleHorizon:     "You cannot book a car for dates too far in the future.",
	RuleNotPast:     "You cannot book a car for past dates.",
	RuleOrder:       "Return date must be after pickup date.",
	RuleMinDuration: "Minimum booking duration must be at least 24 hours.",
	RuleOverlap:     "This car is already booked for the selected time range.",
}

type ValidationError struct {
	Rule   Rule
	Reason string
}

func NewValidationError(rule Rule) *ValidationError {
	return &ValidationError{Rule: rule, Reason: reasons[rule]}
}

func (e *ValidationError) Error() string {
	return "booking: " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Schedule holds the pickup and return fields exactly as submitted.
type Schedule struct {
	PickupDate string
	PickupTime string
	ReturnDate string
	ReturnTime string
}

// Intent is an unconfirmed request for a car, carried as submitted.
type Intent struct {
	CarID    cars.CarID
	Schedule Schedule
	Renter   RenterSnapshot
	UserID   string
}

type Rules struct {
	Horizon     time.Duration
	MinDuration time.Duration
	Location    *time.Location
}

func DefaultRules() Rules {
	return Rules{Horizon: 30 * 24 * time.Hour, MinDuration: 24 * time.Hour, Location: time.UTC}
}

// Check runs the date rules in their fixed order and returns the first
// violation. Car existence and overlap need storage and are checked by the
// application layer around this call.
func (r Rules) Check(s Schedule, now time.Time) (daterange.DateRange, error) {
	pickup, okPickup := r.parse(s.PickupDate, s.PickupTime)
	ret, okReturn := r.parse(s.ReturnDate, s.ReturnTime)
	if !okPickup || !okReturn {
		return daterange.DateRange{}, NewValidationError(RuleParseable)
	}
	return r.CheckRange(pickup, ret, now)
}

// CheckRange applies the horizon, past, order and duration rules to already
// parsed instants.
func (r Rules) CheckRange(pickup, ret, now time.Time) (daterange.DateRange, error) {
	if pickup.After(now.Add(r.horizon())) {
		return daterange.DateRange{}, NewValidationError(RuleHorizon)
	}
	if pickup.Before(now) || ret.Before(now) {
		return daterange.DateRange{}, NewValidationError(RuleNotPast)
	}
	if !ret.After(pickup) {
		return daterange.DateRange{}, NewValidationError(RuleOrder)
	}
	if ret.Sub(pickup) < r.minDuration() {
		return daterange.DateRange{}, NewValidationError(RuleMinDuration)
	}
	return daterange.DateRange{Start: pickup.UTC(), End: ret.UTC()}, nil
}

var (
	dateLayouts = []string{"2006-01-02", "02.01.2006", "01/02/2006"}
	timeLayouts = []string{"15:04", "15:04:05", "3:04 PM"}
)

func (r Rules) parse(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, false
	}
	if clock == "" {
		if t, err := time.Parse(time.RFC3339, date); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	loc := r.location()
	for _, dl := range dateLayouts {
		for _, tl := range timeLayouts {
			if t, err := time.ParseInLocation(dl+" "+tl, date+" "+clock, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (r Rules) horizon() time.Duration {
	if r.Horizon <= 0 {
		return 30 * 24 * time.Hour
	}
	return r.Horizon
}

func (r Rules) minDuration() time.Duration {
	if r.MinDuration <= 0 {
		return 24 * time.Hour
	}
	return r.MinDuration
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}
