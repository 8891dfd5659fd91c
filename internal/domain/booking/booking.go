package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/events"
	"rentacar/internal/domain/shared/money"
)

var (
	ErrInvalidState         = errors.New("booking: invalid state transition")
	ErrNotFound             = errors.New("booking: not found")
	ErrDuplicateTransaction = errors.New("booking: transaction reference already used")
	ErrOverlap              = errors.New("booking: car already reserved for an overlapping range")
	ErrConcurrentUpdate     = errors.New("booking: concurrent update detected")
	ErrNotDue               = errors.New("booking: rental period has not ended")
)

type BookingID string

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentStatusPaid is what the provider reports for a captured payment.
const PaymentStatusPaid = "paid"

// RenterSnapshot is copied at booking time and never updated afterwards.
type RenterSnapshot struct {
	Name    string
	Surname string
	Email   string
	Phone   string
}

func (r RenterSnapshot) FullName() string {
	return strings.TrimSpace(r.Name + " " + r.Surname)
}

type Booking struct {
	ID             BookingID
	CarID          cars.CarID
	UserID         string
	Renter         RenterSnapshot
	Range          daterange.DateRange
	Total          money.Money
	Penalty        money.Money
	TransactionRef string
	PaymentStatus  string
	Status         Status
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByTransactionRef(ctx context.Context, ref string) (*Booking, error)
	// Save inserts when Version is zero and updates with an optimistic
	// version check otherwise. Inserts fail with ErrDuplicateTransaction when
	// the transaction reference is taken and with ErrOverlap when another
	// reserving booking of the same car overlaps.
	Save(ctx context.Context, booking *Booking) error
	ListByCar(ctx context.Context, carID cars.CarID) ([]*Booking, error)
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)
	ListDueForCompletion(ctx context.Context, now time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID             BookingID
	CarID          cars.CarID
	UserID         string
	Renter         RenterSnapshot
	Range          daterange.DateRange
	Total          money.Money
	TransactionRef string
	PaymentStatus  string
	CreatedAt      time.Time
}

// NewScheduled builds a booking in the SCHEDULED state.
func NewScheduled(params CreateParams) (*Booking, error) {
	if params.ID == "" {
		return nil, errors.New("booking: id required")
	}
	if params.CarID == "" {
		return nil, errors.New("booking: car id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if params.Total.Amount <= 0 || params.Total.Currency == "" {
		return nil, errors.New("booking: total must be positive")
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:             params.ID,
		CarID:          params.CarID,
		UserID:         params.UserID,
		Renter:         params.Renter,
		Range:          params.Range,
		Total:          params.Total,
		Penalty:        money.Zero(params.Total.Currency),
		TransactionRef: params.TransactionRef,
		PaymentStatus:  params.PaymentStatus,
		Status:         StatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.Record(BookingScheduled{
		BookingID:      b.ID,
		CarID:          b.CarID,
		UserID:         b.UserID,
		Renter:         b.Renter,
		Range:          b.Range,
		Total:          b.Total,
		TransactionRef: b.TransactionRef,
		At:             now,
	})
	return b, nil
}

// Reserves reports whether the booking still blocks its car's calendar.
func (b *Booking) Reserves() bool {
	return !b.Deleted && b.Status != StatusCancelled
}

func (b *Booking) OwnedBy(userID string) bool {
	return userID != "" && b.UserID == userID
}

func (b *Booking) Paid() bool {
	return b.TransactionRef != ""
}

// Cancel applies a quote produced by CancellationPolicy.Quote. Any refund
// must already have been issued by the caller.
func (b *Booking) Cancel(quote CancellationQuote, now time.Time) error {
	if b.Status != StatusScheduled || b.Deleted {
		return ErrInvalidState
	}
	b.Status = StatusCancelled
	b.Penalty = quote.Penalty
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{
		BookingID: b.ID,
		CarID:     b.CarID,
		Renter:    b.Renter,
		Range:     b.Range,
		Penalty:   quote.Penalty,
		Refund:    quote.Refund,
		At:        b.UpdatedAt,
	})
	return nil
}

// Complete closes a booking whose end has passed, accruing any late fee.
func (b *Booking) Complete(policy LatePolicy, now time.Time) error {
	if b.Status != StatusScheduled || b.Deleted {
		return ErrInvalidState
	}
	if b.Range.End.After(now) {
		return ErrNotDue
	}
	b.Status = StatusCompleted
	b.Penalty = policy.Accrue(b.Range.End, now, b.Total.Currency)
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{
		BookingID:   b.ID,
		CarID:       b.CarID,
		Renter:      b.Renter,
		Range:       b.Range,
		LatePenalty: b.Penalty,
		At:          b.UpdatedAt,
	})
	return nil
}

// SoftDelete hides the booking from listings and releases its slot.
func (b *Booking) SoftDelete(now time.Time) error {
	if b.Deleted {
		return nil
	}
	b.Deleted = true
	b.UpdatedAt = now.UTC()
	b.Record(BookingDeleted{BookingID: b.ID, CarID: b.CarID, At: b.UpdatedAt})
	return nil
}
