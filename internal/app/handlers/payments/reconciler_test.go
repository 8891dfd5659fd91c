package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/handlers/checkout"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/policies"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/infra/storage/memory"
)

var now = time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)

type stubPayments struct {
	sessions map[string]policies.CheckoutSession
	events   map[string]policies.PaymentEvent
}

func (s *stubPayments) CreateCheckoutSession(context.Context, policies.CheckoutRequest) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, errors.New("not used")
}

func (s *stubPayments) GetCheckoutSession(_ context.Context, id string) (policies.CheckoutSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return policies.CheckoutSession{}, &policies.ProviderError{Op: "get checkout session", Err: errors.New("no such session")}
	}
	return session, nil
}

// ParseWebhook treats the signature as a key into the canned events.
func (s *stubPayments) ParseWebhook(_ []byte, signature string) (policies.PaymentEvent, error) {
	ev, ok := s.events[signature]
	if !ok {
		return policies.PaymentEvent{}, policies.ErrSignatureInvalid
	}
	return ev, nil
}

func (s *stubPayments) Refund(context.Context, string, money.Money) error {
	return errors.New("not used")
}

type harness struct {
	reconciler *Reconciler
	bookings   *memory.BookingRepository
	box        *memory.Outbox
	payments   *stubPayments
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test decorate the booking repository the handlers see.
func newHarnessWith(t *testing.T, wrap func(domainbooking.Repository) domainbooking.Repository) *harness {
	t.Helper()
	bookings := memory.NewBookingRepository()
	cars := memory.NewCarRepository(&domaincars.Car{ID: "car-1", Name: "Skoda Octavia", DailyPrice: money.Must(5000, "USD"), Active: true})
	var repo domainbooking.Repository = bookings
	if wrap != nil {
		repo = wrap(bookings)
	}
	factory := memory.Factory{BookingRepo: repo, CarRepo: cars}
	box := memory.NewOutbox()
	seq := 0
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[ScheduleFromPaymentCommand, *ScheduleFromPaymentResult](bus, scheduleFromPaymentKey, &ScheduleFromPaymentHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    outbox.JSONEventEncoder{},
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("bk-%d", seq)
		},
		Now: func() time.Time { return now },
	})
	payments := &stubPayments{sessions: map[string]policies.CheckoutSession{}, events: map[string]policies.PaymentEvent{}}
	return &harness{
		reconciler: &Reconciler{Bus: bus, UoWFactory: factory, Payments: payments, Currency: "USD"},
		bookings:   bookings,
		box:        box,
		payments:   payments,
	}
}

func paidMetadata(fromHours, toHours int) map[string]string {
	return checkout.Metadata{
		CarID:  "car-1",
		Range:  daterange.DateRange{Start: now.Add(time.Duration(fromHours) * time.Hour), End: now.Add(time.Duration(toHours) * time.Hour)},
		Renter: domainbooking.RenterSnapshot{Name: "Ada", Email: "ada@example.com", Phone: "+100"},
		UserID: "user-1",
		Total:  money.Must(10000, "USD"),
	}.Encode()
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	_, err := h.reconciler.HandleWebhook(context.Background(), []byte(`{}`), "forged")
	require.ErrorIs(t, err, policies.ErrSignatureInvalid)
}

func TestWebhookIgnoresUnhandledAndUnpaid(t *testing.T) {
	h := newHarness(t)
	h.payments.events["charge"] = policies.PaymentEvent{ID: "evt_1", Type: "charge.refunded"}
	h.payments.events["unpaid"] = policies.PaymentEvent{ID: "evt_2", Type: "checkout.session.completed", Handled: true, TransactionRef: "pi_2", PaymentStatus: "unpaid", Metadata: paidMetadata(24, 72)}

	for _, sig := range []string{"charge", "unpaid"} {
		res, err := h.reconciler.HandleWebhook(context.Background(), nil, sig)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
	}
	assert.Empty(t, h.box.Pending())
}

func TestWebhookThenRedirectYieldsOneBooking(t *testing.T) {
	h := newHarness(t)
	meta := paidMetadata(24, 72)
	h.payments.events["ok"] = policies.PaymentEvent{ID: "evt_1", Type: "payment_intent.succeeded", Handled: true, TransactionRef: "pi_1", PaymentStatus: "succeeded", Metadata: meta}
	h.payments.sessions["cs_1"] = policies.CheckoutSession{ID: "cs_1", PaymentStatus: "paid", TransactionRef: "pi_1", Metadata: meta}

	first, err := h.reconciler.HandleWebhook(context.Background(), nil, "ok")
	require.NoError(t, err)
	assert.True(t, first.Created())
	require.NotNil(t, first.Booking)
	assert.Equal(t, "pi_1", first.Booking.TransactionRef)
	assert.Equal(t, "Skoda Octavia", first.Booking.Car.Name)

	second, err := h.reconciler.ConfirmRedirect(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, second.Replayed())
	assert.Equal(t, first.Booking.ID, second.Booking.ID)

	third, err := h.reconciler.HandleWebhook(context.Background(), nil, "ok")
	require.NoError(t, err)
	assert.True(t, third.Replayed())

	mine, err := h.bookings.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Len(t, h.box.Pending(), 1)
}

func TestPaymentForTakenSlotIsConflict(t *testing.T) {
	h := newHarness(t)
	h.payments.sessions["cs_a"] = policies.CheckoutSession{ID: "cs_a", PaymentStatus: "paid", TransactionRef: "pi_a", Metadata: paidMetadata(24, 72)}
	h.payments.sessions["cs_b"] = policies.CheckoutSession{ID: "cs_b", PaymentStatus: "paid", TransactionRef: "pi_b", Metadata: paidMetadata(48, 96)}

	_, err := h.reconciler.ConfirmRedirect(context.Background(), "cs_a")
	require.NoError(t, err)

	_, err = h.reconciler.ConfirmRedirect(context.Background(), "cs_b")
	require.ErrorIs(t, err, ErrConflictAfterPayment)

	_, err = h.bookings.ByTransactionRef(context.Background(), "pi_b")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
}

func TestMalformedMetadataCreatesNothing(t *testing.T) {
	h := newHarness(t)
	meta := paidMetadata(24, 72)
	delete(meta, checkout.KeyCarID)
	h.payments.sessions["cs_bad"] = policies.CheckoutSession{ID: "cs_bad", PaymentStatus: "paid", TransactionRef: "pi_bad", Metadata: meta}

	_, err := h.reconciler.ConfirmRedirect(context.Background(), "cs_bad")
	require.ErrorIs(t, err, ErrMalformedMetadata)

	_, err = h.reconciler.Reconcile(context.Background(), Confirmation{PaymentStatus: "paid", Metadata: paidMetadata(24, 72)})
	require.ErrorIs(t, err, ErrMalformedMetadata)
	assert.Empty(t, h.box.Pending())
}

func TestRedirectSurfacesProviderErrors(t *testing.T) {
	h := newHarness(t)
	_, err := h.reconciler.ConfirmRedirect(context.Background(), "cs_missing")
	var providerErr *policies.ProviderError
	require.ErrorAs(t, err, &providerErr)

	disabled := &Reconciler{}
	_, err = disabled.ConfirmRedirect(context.Background(), "cs_1")
	assert.ErrorIs(t, err, policies.ErrPaymentsDisabled)
	_, err = disabled.HandleWebhook(context.Background(), nil, "sig")
	assert.ErrorIs(t, err, policies.ErrPaymentsDisabled)
}

// interleavedBookings runs onMiss once, right after the first transaction
// reference lookup comes back empty, to let the other entry point win.
type interleavedBookings struct {
	domainbooking.Repository
	onMiss func()
	fired  bool
}

func (r *interleavedBookings) ByTransactionRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	b, err := r.Repository.ByTransactionRef(ctx, ref)
	if errors.Is(err, domainbooking.ErrNotFound) && !r.fired && r.onMiss != nil {
		r.fired = true
		r.onMiss()
	}
	return b, err
}

func TestRedirectLosingRaceToWebhookIsReplay(t *testing.T) {
	var h *harness
	var webhookResult *Result
	var webhookErr error
	race := &interleavedBookings{onMiss: func() {
		webhookResult, webhookErr = h.reconciler.HandleWebhook(context.Background(), nil, "ok")
	}}
	h = newHarnessWith(t, func(inner domainbooking.Repository) domainbooking.Repository {
		race.Repository = inner
		return race
	})
	meta := paidMetadata(24, 72)
	h.payments.events["ok"] = policies.PaymentEvent{ID: "evt_1", Type: "payment_intent.succeeded", Handled: true, TransactionRef: "pi_1", PaymentStatus: "succeeded", Metadata: meta}
	h.payments.sessions["cs_1"] = policies.CheckoutSession{ID: "cs_1", PaymentStatus: "paid", TransactionRef: "pi_1", Metadata: meta}

	redirect, err := h.reconciler.ConfirmRedirect(context.Background(), "cs_1")

	require.True(t, race.fired)
	require.NoError(t, webhookErr)
	assert.True(t, webhookResult.Created())
	require.NoError(t, err)
	assert.True(t, redirect.Replayed())
	assert.Equal(t, webhookResult.Booking.ID, redirect.Booking.ID)

	mine, err := h.bookings.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Len(t, h.box.Pending(), 1)
}

// abortingBookings fails the first insert the way an aborted storage
// transaction does.
type abortingBookings struct {
	domainbooking.Repository
	aborts int
}

func (r *abortingBookings) Save(ctx context.Context, b *domainbooking.Booking) error {
	if b.Version == 0 && r.aborts > 0 {
		r.aborts--
		return fmt.Errorf("%w: write conflict", domainbooking.ErrConcurrentUpdate)
	}
	return r.Repository.Save(ctx, b)
}

func TestReconcileRetriesAbortedAttemptOnce(t *testing.T) {
	aborting := &abortingBookings{aborts: 1}
	h := newHarnessWith(t, func(inner domainbooking.Repository) domainbooking.Repository {
		aborting.Repository = inner
		return aborting
	})

	res, err := h.reconciler.Reconcile(context.Background(), Confirmation{TransactionRef: "pi_1", PaymentStatus: "paid", Metadata: paidMetadata(24, 72)})
	require.NoError(t, err)
	assert.True(t, res.Created())
	assert.Zero(t, aborting.aborts)

	aborting.aborts = 2
	_, err = h.reconciler.Reconcile(context.Background(), Confirmation{TransactionRef: "pi_2", PaymentStatus: "paid", Metadata: paidMetadata(96, 144)})
	assert.ErrorIs(t, err, domainbooking.ErrConcurrentUpdate)
}
