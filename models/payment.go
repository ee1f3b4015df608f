package models

// PaymentEventType identifies the upstream billing fact being delivered.
type PaymentEventType string

const (
	EventPaymentSucceeded     PaymentEventType = "payment_succeeded"
	EventInvoicePaymentFailed PaymentEventType = "invoice_payment_failed"
	EventSubscriptionCanceled PaymentEventType = "subscription_canceled"
)

// PaymentEvent is an idempotent fact from the payment processor. EventID is
// the redelivery key: a processed marker is kept per id, so replays are
// no-ops.
type PaymentEvent struct {
	EventID   string           `json:"event_id" validate:"required"`
	Type      PaymentEventType `json:"type" validate:"required"`
	UserID    string           `json:"user_id" validate:"required"`
	PlanName  string           `json:"plan_name,omitempty"`
	PaymentID string           `json:"payment_id,omitempty"`
	InvoiceID string           `json:"invoice_id,omitempty"`
}
