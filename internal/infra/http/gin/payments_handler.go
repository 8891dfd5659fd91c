package ginserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/dto"
	checkoutapp "rentacar/internal/app/handlers/checkout"
	paymentsapp "rentacar/internal/app/handlers/payments"
	"rentacar/internal/app/policies"
)

const maxWebhookBody = 64 << 10

// Reconciler is the payments entry point the HTTP layer needs.
type Reconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*paymentsapp.Result, error)
	ConfirmRedirect(ctx context.Context, sessionID string) (*paymentsapp.Result, error)
}

type PaymentsHandler struct {
	Reconciler Reconciler
}

// Webhook answers 2xx for everything the provider should stop retrying,
// including a conflict after payment, which needs an operator instead.
func (h PaymentsHandler) Webhook(c *gin.Context) {
	// One byte past the limit tells an oversized body from one that fits
	// exactly; a truncated payload would only fail the signature check.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if len(payload) > maxWebhookBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "webhook body too large"})
		return
	}
	result, err := h.Reconciler.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": string(result.Outcome)})
	case errors.Is(err, paymentsapp.ErrConflictAfterPayment):
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": "conflict"})
	case errors.Is(err, policies.ErrSignatureInvalid), errors.Is(err, checkoutapp.ErrMalformedMetadata):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		writeError(c, err)
	}
}

func (h PaymentsHandler) Success(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}
	result, err := h.Reconciler.ConfirmRedirect(c.Request.Context(), sessionID)
	switch {
	case err == nil:
	case errors.Is(err, paymentsapp.ErrConflictAfterPayment):
		c.JSON(http.StatusConflict, dto.Reconciliation{
			Outcome: "conflict",
			Message: "Your payment was received but the car is no longer available for these dates. Our team will refund you shortly.",
		})
		return
	case errors.Is(err, checkoutapp.ErrMalformedMetadata):
		c.JSON(http.StatusUnprocessableEntity, dto.Reconciliation{
			Outcome: "invalid",
			Message: "We could not read the booking details of this payment. Please contact support.",
		})
		return
	default:
		writeError(c, err)
		return
	}
	switch result.Outcome {
	case paymentsapp.OutcomeCreated:
		c.JSON(http.StatusOK, dto.Reconciliation{Outcome: string(result.Outcome), Message: "Booking confirmed.", Booking: result.Booking})
	case paymentsapp.OutcomeReplayed:
		c.JSON(http.StatusOK, dto.Reconciliation{Outcome: string(result.Outcome), Message: "Booking already confirmed.", Booking: result.Booking})
	default:
		c.JSON(http.StatusAccepted, dto.Reconciliation{Outcome: string(result.Outcome), Message: "Payment not completed yet."})
	}
}

func (h PaymentsHandler) Cancel(c *gin.Context) {
	c.JSON(http.StatusOK, dto.Reconciliation{Outcome: "cancelled", Message: "Payment cancelled. No booking was created."})
}

var _ PaymentsHTTP = PaymentsHandler{}
