package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/auth"
	"rentacar/internal/app/commands"
	bookingapp "rentacar/internal/app/handlers/booking"
)

type AdminHandler struct {
	Commands commands.Bus
}

func (h AdminHandler) DeleteBooking(c *gin.Context) {
	if _, ok := requireRole(c, auth.RoleAdmin); !ok {
		return
	}
	cmd := bookingapp.DeleteBookingCommand{BookingID: c.Param("id")}
	result, err := commands.Dispatch[bookingapp.DeleteBookingCommand, *bookingapp.DeleteBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AdminHTTP = AdminHandler{}
