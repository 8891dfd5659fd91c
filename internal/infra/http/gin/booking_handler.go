package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/auth"
	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	bookingapp "rentacar/internal/app/handlers/booking"
	"rentacar/internal/app/queries"
	domainbooking "rentacar/internal/domain/booking"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// bookingRequest is the intent as the booking form submits it.
type bookingRequest struct {
	CarID      string `json:"car_id" binding:"required"`
	PickupDate string `json:"pickup_date"`
	PickupTime string `json:"pickup_time"`
	ReturnDate string `json:"return_date"`
	ReturnTime string `json:"return_time"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

func (r bookingRequest) schedule() domainbooking.Schedule {
	return domainbooking.Schedule{
		PickupDate: r.PickupDate,
		PickupTime: r.PickupTime,
		ReturnDate: r.ReturnDate,
		ReturnTime: r.ReturnTime,
	}
}

// renter falls back to the token email when the form leaves it empty.
func (r bookingRequest) renter(p auth.Principal) domainbooking.RenterSnapshot {
	email := r.Email
	if email == "" {
		email = p.Email
	}
	return domainbooking.RenterSnapshot{Name: r.Name, Surname: r.Surname, Email: email, Phone: r.Phone}
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		UserID:          user.UserID,
		CarID:           req.CarID,
		Schedule:        req.schedule(),
		Renter:          req.renter(user),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.BookingCreated](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	query := bookingapp.GetBookingQuery{BookingID: c.Param("id"), UserID: user.UserID, Admin: user.HasRole(auth.RoleAdmin)}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), UserID: user.UserID}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.CancelResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
