package booking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/app/auth"
	"rentacar/internal/app/handlers/availability"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/policies"
	"rentacar/internal/app/uow"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/infra/storage/memory"
)

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type refundCall struct {
	ref    string
	amount money.Money
}

type fakePayments struct {
	refunds   []refundCall
	refundErr error
}

func (f *fakePayments) CreateCheckoutSession(context.Context, policies.CheckoutRequest) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, errors.New("not used")
}

func (f *fakePayments) GetCheckoutSession(context.Context, string) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, errors.New("not used")
}

func (f *fakePayments) ParseWebhook([]byte, string) (policies.PaymentEvent, error) {
	return policies.PaymentEvent{}, errors.New("not used")
}

func (f *fakePayments) Refund(_ context.Context, ref string, amount money.Money) error {
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunds = append(f.refunds, refundCall{ref: ref, amount: amount})
	return nil
}

type fixture struct {
	bookings *memory.BookingRepository
	factory  memory.Factory
	box      *memory.Outbox
	payments *fakePayments
	seq      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	retired := testNow.Add(-24 * time.Hour)
	cars := memory.NewCarRepository(
		&domaincars.Car{ID: "car-1", Name: "Toyota Corolla", DailyPrice: money.Must(5000, "USD"), Active: true},
		&domaincars.Car{ID: "car-old", Name: "Fiat Panda", DailyPrice: money.Must(2000, "USD"), DeactivatedAt: &retired},
	)
	bookings := memory.NewBookingRepository()
	return &fixture{
		bookings: bookings,
		factory:  memory.Factory{BookingRepo: bookings, CarRepo: cars},
		box:      memory.NewOutbox(),
		payments: &fakePayments{},
	}
}

func (f *fixture) validator() Validator {
	return Validator{UoWFactory: f.factory, Rules: domainbooking.DefaultRules(), Checker: availability.Checker{}}
}

func (f *fixture) nextID() string {
	f.seq++
	return fmt.Sprintf("bk-%d", f.seq)
}

func (f *fixture) createHandler() *CreateBookingHandler {
	return &CreateBookingHandler{
		UoWFactory:  f.factory,
		Validator:   f.validator(),
		Outbox:      f.box,
		Encoder:     outbox.JSONEventEncoder{},
		IDGenerator: f.nextID,
		Now:         clock,
	}
}

func (f *fixture) cancelHandler() *CancelBookingHandler {
	return &CancelBookingHandler{
		UoWFactory: f.factory,
		Payments:   f.payments,
		Policy:     domainbooking.CancellationPolicy{PenaltyPercent: domainbooking.DefaultCancellationPenaltyPercent},
		Outbox:     f.box,
		Encoder:    outbox.JSONEventEncoder{},
		Now:        clock,
	}
}

// seed stores a booking directly, bypassing validation.
func (f *fixture) seed(t *testing.T, id, userID, ref string, start, end time.Time, total int64) *domainbooking.Booking {
	t.Helper()
	b, err := domainbooking.NewScheduled(domainbooking.CreateParams{
		ID:             domainbooking.BookingID(id),
		CarID:          "car-1",
		UserID:         userID,
		Renter:         domainbooking.RenterSnapshot{Name: "Ada", Email: "ada@example.com", Phone: "+100"},
		Range:          daterange.DateRange{Start: start, End: end},
		Total:          money.Must(total, "USD"),
		TransactionRef: ref,
		PaymentStatus:  domainbooking.PaymentStatusPaid,
		CreatedAt:      testNow.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	b.PullEvents()
	require.NoError(t, f.bookings.Save(context.Background(), b))
	return b
}

func schedule(pickupDate, pickupTime, returnDate, returnTime string) domainbooking.Schedule {
	return domainbooking.Schedule{PickupDate: pickupDate, PickupTime: pickupTime, ReturnDate: returnDate, ReturnTime: returnTime}
}

func ruleOf(t *testing.T, err error) domainbooking.Rule {
	t.Helper()
	var verr *domainbooking.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Rule
}

func TestValidatorReportsFirstFailingRule(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "existing", "user-9", "", time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC), time.Date(2025, 3, 22, 10, 0, 0, 0, time.UTC), 10000)

	cases := []struct {
		name  string
		car   domaincars.CarID
		sched domainbooking.Schedule
		want  domainbooking.Rule
	}{
		{"unknown car wins over bad dates", "car-x", schedule("garbage", "", "", ""), domainbooking.RuleCarExists},
		{"inactive car", "car-old", schedule("2025-03-12", "10:00", "2025-03-14", "10:00"), domainbooking.RuleCarExists},
		{"unparseable", "car-1", schedule("12/31/abc", "10:00", "2025-03-14", "10:00"), domainbooking.RuleParseable},
		{"beyond horizon", "car-1", schedule("2025-04-20", "10:00", "2025-04-22", "10:00"), domainbooking.RuleHorizon},
		{"pickup in the past", "car-1", schedule("2025-03-09", "10:00", "2025-03-12", "10:00"), domainbooking.RuleNotPast},
		{"return before pickup", "car-1", schedule("2025-03-14", "10:00", "2025-03-12", "10:00"), domainbooking.RuleOrder},
		{"shorter than a day", "car-1", schedule("2025-03-12", "10:00", "2025-03-13", "09:00"), domainbooking.RuleMinDuration},
		{"overlapping booking", "car-1", schedule("2025-03-21", "10:00", "2025-03-23", "10:00"), domainbooking.RuleOverlap},
		{"inactive car wins over past pickup", "car-old", schedule("2025-03-09", "10:00", "2025-03-12", "10:00"), domainbooking.RuleCarExists},
		{"past pickup wins over overlap", "car-1", schedule("2025-03-09", "10:00", "2025-03-21", "10:00"), domainbooking.RuleNotPast},
		{"inverted range wins over overlap", "car-1", schedule("2025-03-21", "12:00", "2025-03-21", "11:00"), domainbooking.RuleOrder},
		{"short stay wins over overlap", "car-1", schedule("2025-03-21", "10:00", "2025-03-21", "20:00"), domainbooking.RuleMinDuration},
		{"horizon wins over inverted range", "car-1", schedule("2025-04-20", "10:00", "2025-04-18", "10:00"), domainbooking.RuleHorizon},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.validator().Validate(context.Background(), domainbooking.Intent{CarID: tc.car, Schedule: tc.sched}, testNow)
			assert.Equal(t, tc.want, ruleOf(t, err))
			assert.ErrorIs(t, err, domainbooking.ErrValidation)
		})
	}
}

func TestValidatorAcceptsAdjacentRange(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "existing", "user-9", "", time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC), time.Date(2025, 3, 22, 10, 0, 0, 0, time.UTC), 10000)

	got, err := f.validator().Validate(context.Background(), domainbooking.Intent{
		CarID:    "car-1",
		Schedule: schedule("2025-03-22", "10:00", "2025-03-24", "10:00"),
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, domaincars.CarID("car-1"), got.Car.ID)
	assert.Equal(t, time.Date(2025, 3, 22, 10, 0, 0, 0, time.UTC), got.Range.Start)
}

func TestCreateBookingPricesStartedDays(t *testing.T) {
	f := newFixture(t)
	res, err := f.createHandler().Handle(context.Background(), CreateBookingCommand{
		UserID:   "user-1",
		CarID:    "car-1",
		Schedule: schedule("2025-03-12", "10:00", "2025-03-14", "12:00"),
		Renter:   domainbooking.RenterSnapshot{Name: "Ada", Email: "ada@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bk-1", res.BookingID)
	assert.Equal(t, string(domainbooking.StatusScheduled), res.Status)
	assert.Equal(t, int64(15000), res.Total.Amount)
	assert.Equal(t, "150.00", res.Total.Display)

	stored, err := f.bookings.ByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Empty(t, stored.TransactionRef)
	assert.Equal(t, "user-1", stored.UserID)

	pending := f.box.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domainbooking.EventScheduled, pending[0].Name)
}

func TestCreateBookingRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	h := f.createHandler()
	cmd := CreateBookingCommand{UserID: "user-1", CarID: "car-1", Schedule: schedule("2025-03-12", "10:00", "2025-03-14", "10:00")}
	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	cmd.Schedule = schedule("2025-03-13", "10:00", "2025-03-15", "10:00")
	_, err = h.Handle(context.Background(), cmd)
	assert.Equal(t, domainbooking.RuleOverlap, ruleOf(t, err))
	assert.Len(t, f.box.Pending(), 1)
}

func TestCancelUnpaidBookingIsFree(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-free", "user-1", "", testNow.Add(48*time.Hour), testNow.Add(96*time.Hour), 10000)

	res, err := f.cancelHandler().Handle(context.Background(), CancelBookingCommand{BookingID: "bk-free", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCancelled), res.Status)
	assert.Zero(t, res.Penalty.Amount)
	assert.Zero(t, res.Refund.Amount)
	assert.Empty(t, f.payments.refunds)
}

func TestCancelPaidBookingRefundsAfterPenalty(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-paid", "user-1", "pi_123", testNow.Add(48*time.Hour), testNow.Add(96*time.Hour), 10000)

	res, err := f.cancelHandler().Handle(context.Background(), CancelBookingCommand{BookingID: "bk-paid", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Penalty.Display)
	assert.Equal(t, "90.00", res.Refund.Display)
	require.Len(t, f.payments.refunds, 1)
	assert.Equal(t, "pi_123", f.payments.refunds[0].ref)
	assert.Equal(t, int64(9000), f.payments.refunds[0].amount.Amount)

	stored, err := f.bookings.ByID(context.Background(), "bk-paid")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, stored.Status)
	assert.Equal(t, int64(1000), stored.Penalty.Amount)

	pending := f.box.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domainbooking.EventCancelled, pending[0].Name)
}

func TestCancelRefundFailureLeavesBookingScheduled(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-paid", "user-1", "pi_123", testNow.Add(48*time.Hour), testNow.Add(96*time.Hour), 10000)
	f.payments.refundErr = errors.New("card network down")

	_, err := f.cancelHandler().Handle(context.Background(), CancelBookingCommand{BookingID: "bk-paid", UserID: "user-1"})
	var providerErr *policies.ProviderError
	require.ErrorAs(t, err, &providerErr)

	stored, err := f.bookings.ByID(context.Background(), "bk-paid")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusScheduled, stored.Status)
	assert.Empty(t, f.box.Pending())
}

// commitFailingFactory hands out units whose commit always fails.
type commitFailingFactory struct {
	memory.Factory
	err error
}

func (f commitFailingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return commitFailingUnit{UnitOfWork: unit, err: f.err}, nil
}

type commitFailingUnit struct {
	uow.UnitOfWork
	err error
}

func (u commitFailingUnit) Commit(context.Context) error { return u.err }

func TestCancelReportsRefundWhenCommitFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-paid", "user-1", "pi_123", testNow.Add(48*time.Hour), testNow.Add(96*time.Hour), 10000)
	var logs bytes.Buffer
	commitErr := errors.New("commit aborted")
	h := f.cancelHandler()
	h.UoWFactory = commitFailingFactory{Factory: f.factory, err: commitErr}
	h.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	_, err := h.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-paid", UserID: "user-1"})
	require.ErrorIs(t, err, commitErr)
	require.Len(t, f.payments.refunds, 1)
	assert.Contains(t, logs.String(), "refund issued but cancellation not persisted")
	assert.Contains(t, logs.String(), "transaction_ref=pi_123")
	assert.Contains(t, logs.String(), "booking_id=bk-paid")
}

func TestCancelFreeBookingCommitFailureLogsNoRefund(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-free", "user-1", "", testNow.Add(48*time.Hour), testNow.Add(96*time.Hour), 10000)
	var logs bytes.Buffer
	h := f.cancelHandler()
	h.UoWFactory = commitFailingFactory{Factory: f.factory, err: errors.New("commit aborted")}
	h.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	_, err := h.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-free", UserID: "user-1"})
	require.Error(t, err)
	assert.Empty(t, f.payments.refunds)
	assert.NotContains(t, logs.String(), "refund issued")
}

func TestCancelChecksOwnershipAndState(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-1", "user-1", "", testNow.Add(48*time.Hour), testNow.Add(96*time.Hour), 10000)
	h := f.cancelHandler()

	_, err := h.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-1", UserID: "intruder"})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = h.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-1", UserID: "user-1"})
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-1", UserID: "user-1"})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)

	_, err = h.Handle(context.Background(), CancelBookingCommand{BookingID: "missing", UserID: "user-1"})
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
}

func TestCompleteBookingAccruesLatePenalty(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-late", "user-1", "pi_1", testNow.Add(-72*time.Hour), testNow.Add(-3*time.Hour), 10000)
	h := &CompleteBookingHandler{
		UoWFactory: f.factory,
		Late:       domainbooking.LatePolicy{RatePerHour: 1000},
		Outbox:     f.box,
		Encoder:    outbox.JSONEventEncoder{},
	}

	res, err := h.Handle(context.Background(), CompleteBookingCommand{BookingID: "bk-late", At: testNow})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, int64(3000), res.LatePenalty)

	again, err := h.Handle(context.Background(), CompleteBookingCommand{BookingID: "bk-late", At: testNow})
	require.NoError(t, err)
	assert.False(t, again.Completed)

	pending := f.box.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domainbooking.EventCompleted, pending[0].Name)
}

func TestDeletedBookingHiddenFromOwner(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "bk-1", "user-1", "", testNow.Add(48*time.Hour), testNow.Add(96*time.Hour), 10000)
	f.seed(t, "bk-2", "user-1", "", testNow.Add(120*time.Hour), testNow.Add(160*time.Hour), 10000)

	del := &DeleteBookingHandler{UoWFactory: f.factory, Outbox: f.box, Encoder: outbox.JSONEventEncoder{}, Now: clock}
	res, err := del.Handle(context.Background(), DeleteBookingCommand{BookingID: "bk-1"})
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	_, err = del.Handle(context.Background(), DeleteBookingCommand{BookingID: "bk-1"})
	require.NoError(t, err)
	assert.Len(t, f.box.Pending(), 1)

	get := &GetBookingHandler{UoWFactory: f.factory}
	_, err = get.Handle(context.Background(), GetBookingQuery{BookingID: "bk-1", UserID: "user-1"})
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
	asAdmin, err := get.Handle(context.Background(), GetBookingQuery{BookingID: "bk-1", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, "Toyota Corolla", asAdmin.Car.Name)
	_, err = get.Handle(context.Background(), GetBookingQuery{BookingID: "bk-2", UserID: "user-2"})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	list := &ListMyBookingsHandler{UoWFactory: f.factory}
	mine, err := list.Handle(context.Background(), ListMyBookingsQuery{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, mine.Scheduled, 1)
	assert.Equal(t, "bk-2", mine.Scheduled[0].ID)
	assert.Empty(t, mine.Cancelled)
}

func TestDeleteRequiresAdminRole(t *testing.T) {
	assert.Equal(t, auth.RoleAdmin, DeleteBookingCommand{BookingID: "bk-1"}.RequiredRole())
}
