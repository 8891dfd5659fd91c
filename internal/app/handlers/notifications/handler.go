package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"rentacar/internal/app/handlers/checkout"
	"rentacar/internal/app/policies"
	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
)

const displayLayout = "2006-01-02 15:04 MST"

// Handler turns booking events into renter emails. Receipts for new bookings
// are rendered and uploaded first; a failed upload only drops the link.
type Handler struct {
	Mailer   policies.Mailer
	Receipts policies.ObjectStore
	Logger   *slog.Logger
}

// Handle processes one event by name. Events without a renter-facing message
// are acknowledged with a nil error.
func (h *Handler) Handle(ctx context.Context, name string, payload []byte) error {
	switch name {
	case domainbooking.EventScheduled:
		var ev domainbooking.BookingScheduled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("notifications: decode %s: %w", name, err)
		}
		return h.scheduled(ctx, ev)
	case domainbooking.EventCancelled:
		var ev domainbooking.BookingCancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("notifications: decode %s: %w", name, err)
		}
		v := baseView(ev.BookingID, ev.CarID, ev.Renter, ev.Range.Start, ev.Range.End)
		v.Penalty = ev.Penalty.String()
		v.Refund = ev.Refund.String()
		return h.send(ctx, ev.Renter.Email, "Your booking has been cancelled", cancelledTmpl, v)
	case domainbooking.EventCompleted:
		var ev domainbooking.BookingCompleted
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("notifications: decode %s: %w", name, err)
		}
		v := baseView(ev.BookingID, ev.CarID, ev.Renter, ev.Range.Start, ev.Range.End)
		if !ev.LatePenalty.IsZero() {
			v.LatePenalty = ev.LatePenalty.String()
		}
		return h.send(ctx, ev.Renter.Email, "Your rental is complete", completedTmpl, v)
	default:
		return nil
	}
}

func (h *Handler) scheduled(ctx context.Context, ev domainbooking.BookingScheduled) error {
	v := baseView(ev.BookingID, ev.CarID, ev.Renter, ev.Range.Start, ev.Range.End)
	v.Total = ev.Total.String()
	v.TransactionRef = ev.TransactionRef
	if url, err := h.uploadReceipt(ctx, v); err != nil {
		h.logger().Warn("receipt upload failed", "booking_id", ev.BookingID, "error", err)
	} else {
		v.ReceiptURL = url
	}
	return h.send(ctx, ev.Renter.Email, "Your booking is confirmed", scheduledTmpl, v)
}

// ReceiptKey is where a booking's receipt is stored.
func ReceiptKey(bookingID domainbooking.BookingID) string {
	return "receipts/" + string(bookingID) + ".html"
}

func (h *Handler) uploadReceipt(ctx context.Context, v view) (string, error) {
	if h.Receipts == nil {
		return "", nil
	}
	body, err := render(receiptTmpl, v)
	if err != nil {
		return "", err
	}
	return h.Receipts.Upload(ctx, ReceiptKey(domainbooking.BookingID(v.BookingID)), strings.NewReader(body), "text/html; charset=utf-8")
}

func (h *Handler) send(ctx context.Context, to, subject string, tmpl *template.Template, v view) error {
	to = strings.TrimSpace(to)
	if to == "" || to == checkout.PlaceholderEmail {
		h.logger().Warn("renter has no email, notification skipped", "booking_id", v.BookingID)
		return nil
	}
	if h.Mailer == nil {
		return nil
	}
	body, err := render(tmpl, v)
	if err != nil {
		return err
	}
	if err := h.Mailer.Send(ctx, policies.Email{To: to, Subject: subject, HTML: body}); err != nil {
		return fmt.Errorf("notifications: send to %s: %w", to, err)
	}
	return nil
}

func baseView(id domainbooking.BookingID, carID domaincars.CarID, renter domainbooking.RenterSnapshot, start, end time.Time) view {
	return view{
		BookingID:  string(id),
		RenterName: renter.FullName(),
		Email:      renter.Email,
		Phone:      renter.Phone,
		CarID:      string(carID),
		Start:      start.UTC().Format(displayLayout),
		End:        end.UTC().Format(displayLayout),
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
