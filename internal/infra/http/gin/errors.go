package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/auth"
	availabilityapp "rentacar/internal/app/handlers/availability"
	bookingapp "rentacar/internal/app/handlers/booking"
	checkoutapp "rentacar/internal/app/handlers/checkout"
	"rentacar/internal/app/policies"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
)

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	var validation *domainbooking.ValidationError
	var provider *policies.ProviderError
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainbooking.ErrNotFound), errors.Is(err, domaincars.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, domainbooking.ErrOverlap):
		return http.StatusConflict
	case errors.Is(err, policies.ErrPaymentsDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &provider):
		return http.StatusBadGateway
	case errors.Is(err, policies.ErrSignatureInvalid),
		errors.Is(err, checkoutapp.ErrMalformedMetadata),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, availabilityapp.ErrCarIDRequired),
		errors.Is(err, bookingapp.ErrBookingIDRequired),
		errors.Is(err, bookingapp.ErrUserRequired),
		errors.Is(err, checkoutapp.ErrCarRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var validation *domainbooking.ValidationError
	if errors.As(err, &validation) {
		body = gin.H{"error": validation.Reason, "rule": string(validation.Rule)}
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		body = gin.H{"error": "internal error"}
	}
	c.JSON(status, body)
}
