package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:   {StatusDelivered, StatusRefunded},
	StatusDelivered: {StatusRefunded},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
// Statuses never move backwards; cancelled and refunded are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UnknownProductName labels items whose product has since been deleted.
const UnknownProductName = "Item"

type Order struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.NullUUID `json:"user_id"`
	Status            Status        `json:"status"`
	PaymentProvider   *string       `json:"payment_provider,omitempty"`
	PaymentID         *string       `json:"payment_id,omitempty"`
	CheckoutExpiresAt *time.Time    `json:"checkout_expires_at,omitempty"`
	TotalCents        int64         `json:"total_cents"`
	Currency          string        `json:"currency"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	Items             []Item        `json:"items"`
}

type Item struct {
	ID             uuid.UUID     `json:"id"`
	OrderID        uuid.UUID     `json:"order_id"`
	ProductID      uuid.NullUUID `json:"product_id"`
	VariantID      uuid.NullUUID `json:"variant_id"`
	ProductName    string        `json:"product_name"`
	Quantity       int           `json:"quantity"`
	UnitPriceCents int64         `json:"unit_price_cents"`
	TotalCents     int64         `json:"total_cents"`
}

// CartEntry is one line of a submitted cart.
type CartEntry struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity"`
}

// ProductSnapshot is the catalog data an order is priced from.
type ProductSnapshot struct {
	ID         uuid.UUID
	Name       string
	PriceCents int64
	Currency   string
	IsActive   bool
}

type ListFilter struct {
	UserID *uuid.UUID
	Status Status
	Limit  int
	Offset int
}

type CheckoutResult struct {
	CheckoutURL string    `json:"checkout_url"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Transition asks for an order to move to To. PaymentRef is recorded when set.
type Transition struct {
	OrderID    uuid.UUID
	To         Status
	Provider   string
	PaymentRef string
	Reason     string
}

// TransitionResult says what a transition did.
type TransitionResult string

const (
	ResultApplied   TransitionResult = "applied"
	ResultDuplicate TransitionResult = "duplicate"
	ResultStale     TransitionResult = "stale"
)

// StatusEvent is the message published for every order lifecycle change.
type StatusEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	OrderID        string    `json:"order_id"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	TotalCents     int64     `json:"total_cents"`
	Currency       string    `json:"currency"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	aggregateOrder          = "order"
)
