package payment

import (
	"context"
	"time"
)

const ProviderStripe = "stripe"

// Gateway creates hosted checkout sessions with an external provider.
type Gateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutRequest struct {
	OrderID    string
	Currency   string
	Items      []LineItem
	SuccessURL string
	CancelURL  string
	ExpiresAt  time.Time
}

type Session struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}
