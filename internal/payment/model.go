package payment

import (
	"encoding/json"
)

// Kind is what a provider event asks the order to become.
type Kind string

const (
	KindIgnored   Kind = "ignored"
	KindPaid      Kind = "paid"
	KindCancelled Kind = "cancelled"
	KindRefunded  Kind = "refunded"
)

// Event is a verified provider notification reduced to what reconciliation
// needs. OrderRef is empty when the order must be found by PaymentRef.
type Event struct {
	ID               string
	Type             string
	Kind             Kind
	OrderRef         string
	PaymentRef       string
	ResolveByPayment bool
	Payload          json.RawMessage
}

// Delivery is one row of the webhook delivery log.
type Delivery struct {
	Provider  string
	EventID   string
	EventType string
	OrderRef  string
	Payload   json.RawMessage
}
