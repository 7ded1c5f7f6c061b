package models

import "time"

// Payment event types published after a lifecycle transition is persisted.
const (
	EventPaymentAuthorized = "payment_authorized"
	EventPaymentCaptured   = "payment_captured"
	EventPaymentRefunded   = "payment_refunded"
	EventPaymentVoided     = "payment_voided"
)

type PaymentEvent struct {
	Type           string    `json:"type"`
	PaymentID      string    `json:"payment_id"`
	OrderID        string    `json:"order_id"`
	RemoteID       string    `json:"remote_id,omitempty"`
	State          string    `json:"state"`
	Amount         string    `json:"amount"`          // decimal, major units
	RefundedAmount string    `json:"refunded_amount"` // decimal, major units
	Currency       string    `json:"currency"`
	Timestamp      time.Time `json:"timestamp"` // UTC event time
}

// NewPaymentEvent snapshots p for publishing.
func NewPaymentEvent(eventType string, p *Payment, at time.Time) PaymentEvent {
	return PaymentEvent{
		Type:           eventType,
		PaymentID:      p.ID.String(),
		OrderID:        p.OrderID.String(),
		RemoteID:       p.GetRemoteID(),
		State:          string(p.State),
		Amount:         p.Amount.String(),
		RefundedAmount: p.RefundedAmount.String(),
		Currency:       p.Currency,
		Timestamp:      at.UTC(),
	}
}
