package dto

import (
	"time"

	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type CarSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	DailyPrice MoneyDTO `json:"daily_price"`
}

type RenterDTO struct {
	Name    string `json:"name"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// Booking is the read model shared with email, receipt and profile views.
type Booking struct {
	ID             string     `json:"id"`
	Car            CarSummary `json:"car"`
	UserID         string     `json:"user_id,omitempty"`
	Renter         RenterDTO  `json:"renter"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	Total          MoneyDTO   `json:"total"`
	Penalty        MoneyDTO   `json:"penalty"`
	Status         string     `json:"status"`
	TransactionRef string     `json:"transaction_ref,omitempty"`
	PaymentStatus  string     `json:"payment_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// BookingCollection groups a renter's bookings by lifecycle status.
type BookingCollection struct {
	Scheduled []Booking `json:"scheduled"`
	Completed []Booking `json:"completed"`
	Cancelled []Booking `json:"cancelled"`
}

type CancelResult struct {
	BookingID string   `json:"booking_id"`
	Status    string   `json:"status"`
	Penalty   MoneyDTO `json:"penalty"`
	Refund    MoneyDTO `json:"refund"`
}

type BookingCreated struct {
	BookingID string   `json:"booking_id"`
	Status    string   `json:"status"`
	Total     MoneyDTO `json:"total"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency, Display: value.Decimal()}
}

func MapCar(car *domaincars.Car) CarSummary {
	if car == nil {
		return CarSummary{}
	}
	return CarSummary{ID: string(car.ID), Name: car.Name, DailyPrice: MapMoney(car.DailyPrice)}
}

// MapBooking renders a booking; car may be nil when the catalog entry is gone.
func MapBooking(b *domainbooking.Booking, car *domaincars.Car) Booking {
	summary := MapCar(car)
	if summary.ID == "" {
		summary.ID = string(b.CarID)
	}
	return Booking{
		ID:     string(b.ID),
		Car:    summary,
		UserID: b.UserID,
		Renter: RenterDTO{
			Name:    b.Renter.Name,
			Surname: b.Renter.Surname,
			Email:   b.Renter.Email,
			Phone:   b.Renter.Phone,
		},
		Start:          b.Range.Start,
		End:            b.Range.End,
		Total:          MapMoney(b.Total),
		Penalty:        MapMoney(b.Penalty),
		Status:         string(b.Status),
		TransactionRef: b.TransactionRef,
		PaymentStatus:  b.PaymentStatus,
		CreatedAt:      b.CreatedAt,
	}
}

// Add files the booking under its status bucket.
func (c *BookingCollection) Add(item Booking) {
	switch domainbooking.Status(item.Status) {
	case domainbooking.StatusCompleted:
		c.Completed = append(c.Completed, item)
	case domainbooking.StatusCancelled:
		c.Cancelled = append(c.Cancelled, item)
	default:
		c.Scheduled = append(c.Scheduled, item)
	}
}
