package dto

type CheckoutSession struct {
	SessionID string   `json:"session_id"`
	URL       string   `json:"url"`
	Total     MoneyDTO `json:"total"`
}

// Reconciliation reports what a payment confirmation did.
type Reconciliation struct {
	Outcome string   `json:"outcome"`
	Message string   `json:"message"`
	Booking *Booking `json:"booking,omitempty"`
}
