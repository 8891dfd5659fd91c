package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	checkoutapp "rentacar/internal/app/handlers/checkout"
)

type CheckoutHandler struct {
	Commands commands.Bus
}

func (h CheckoutHandler) Start(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := checkoutapp.StartCheckoutCommand{
		UserID:          user.UserID,
		CarID:           req.CarID,
		Schedule:        req.schedule(),
		Renter:          req.renter(user),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[checkoutapp.StartCheckoutCommand, *dto.CheckoutSession](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ CheckoutHTTP = CheckoutHandler{}
