package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	bookinghandlers "rentacar/internal/app/handlers/booking"
	"rentacar/internal/app/middleware"
	"rentacar/internal/app/policies"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
)

const startCheckoutKey = "checkout.start"

// SessionPlaceholder is expanded by the provider into the real session id.
const SessionPlaceholder = "{CHECKOUT_SESSION_ID}"

var ErrCarRequired = errors.New("checkout: car id required")

// StartCheckoutCommand prices a validated intent and opens a hosted checkout
// session. Nothing is persisted; the booking is created by reconciliation.
type StartCheckoutCommand struct {
	UserID          string
	CarID           string
	Schedule        domainbooking.Schedule
	Renter          domainbooking.RenterSnapshot
	IdempotencyKeyV string
}

func (c StartCheckoutCommand) Key() string { return startCheckoutKey }

func (c StartCheckoutCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c StartCheckoutCommand) ResultPrototype() any { return &dto.CheckoutSession{} }

func (c StartCheckoutCommand) Validate() error {
	if strings.TrimSpace(c.CarID) == "" {
		return ErrCarRequired
	}
	return nil
}

type StartCheckoutHandler struct {
	Validator     bookinghandlers.Validator
	Payments      policies.PaymentsPort
	PublicBaseURL string
	Now           func() time.Time
}

func (h *StartCheckoutHandler) Handle(ctx context.Context, cmd StartCheckoutCommand) (*dto.CheckoutSession, error) {
	if h.Payments == nil {
		return nil, &policies.ProviderError{Op: "create checkout session", Err: policies.ErrPaymentsDisabled}
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	validated, err := h.Validator.Validate(ctx, domainbooking.Intent{
		CarID:    domaincars.CarID(strings.TrimSpace(cmd.CarID)),
		Schedule: cmd.Schedule,
		Renter:   cmd.Renter,
		UserID:   cmd.UserID,
	}, now)
	if err != nil {
		return nil, err
	}

	total := validated.Car.PriceFor(validated.Range)
	meta := Metadata{
		CarID:  validated.Car.ID,
		Range:  validated.Range,
		Renter: cmd.Renter,
		UserID: cmd.UserID,
		Total:  total,
	}
	base := strings.TrimRight(h.PublicBaseURL, "/")
	session, err := h.Payments.CreateCheckoutSession(ctx, policies.CheckoutRequest{
		Amount:      total,
		ProductName: validated.Car.Name,
		SuccessURL:  base + "/payments/success?sessionId=" + SessionPlaceholder,
		CancelURL:   base + "/payments/cancel",
		Email:       cmd.Renter.Email,
		Metadata:    meta.Encode(),
	})
	if err != nil {
		var providerErr *policies.ProviderError
		if !errors.As(err, &providerErr) {
			err = &policies.ProviderError{Op: "create checkout session", Err: err}
		}
		return nil, err
	}
	return &dto.CheckoutSession{SessionID: session.ID, URL: session.URL, Total: dto.MapMoney(total)}, nil
}

var _ commands.Handler[StartCheckoutCommand, *dto.CheckoutSession] = (*StartCheckoutHandler)(nil)
var _ middleware.IdempotentCommand = (*StartCheckoutCommand)(nil)
