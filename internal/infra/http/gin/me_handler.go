package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/dto"
	bookingapp "rentacar/internal/app/handlers/booking"
	"rentacar/internal/app/queries"
)

type MeHandler struct {
	Queries queries.Bus
}

func (h MeHandler) ListBookings(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListMyBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListMyBookingsQuery{UserID: user.UserID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ MeHTTP = MeHandler{}
