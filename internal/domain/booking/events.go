package booking

import (
	"time"

	"rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/money"
)

const (
	EventScheduled = "booking.scheduled"
	EventCancelled = "booking.cancelled"
	EventCompleted = "booking.completed"
	EventDeleted   = "booking.deleted"
)

type BookingScheduled struct {
	BookingID      BookingID           `json:"booking_id"`
	CarID          cars.CarID          `json:"car_id"`
	UserID         string              `json:"user_id,omitempty"`
	Renter         RenterSnapshot      `json:"renter"`
	Range          daterange.DateRange `json:"range"`
	Total          money.Money         `json:"total"`
	TransactionRef string              `json:"transaction_ref,omitempty"`
	At             time.Time           `json:"at"`
}

func (e BookingScheduled) EventName() string     { return EventScheduled }
func (e BookingScheduled) AggregateID() string   { return string(e.BookingID) }
func (e BookingScheduled) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID           `json:"booking_id"`
	CarID     cars.CarID          `json:"car_id"`
	Renter    RenterSnapshot      `json:"renter"`
	Range     daterange.DateRange `json:"range"`
	Penalty   money.Money         `json:"penalty"`
	Refund    money.Money         `json:"refund"`
	At        time.Time           `json:"at"`
}

func (e BookingCancelled) EventName() string     { return EventCancelled }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID   BookingID           `json:"booking_id"`
	CarID       cars.CarID          `json:"car_id"`
	Renter      RenterSnapshot      `json:"renter"`
	Range       daterange.DateRange `json:"range"`
	LatePenalty money.Money         `json:"late_penalty"`
	At          time.Time           `json:"at"`
}

func (e BookingCompleted) EventName() string     { return EventCompleted }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingDeleted struct {
	BookingID BookingID  `json:"booking_id"`
	CarID     cars.CarID `json:"car_id"`
	At        time.Time  `json:"at"`
}

func (e BookingDeleted) EventName() string     { return EventDeleted }
func (e BookingDeleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingDeleted) OccurredAt() time.Time { return e.At }
