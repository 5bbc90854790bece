package order

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrMissingProduct     = errors.New("cart entry has no product id")
	ErrNoPurchasableItems = errors.New("none of the cart items can be purchased")
	ErrMixedCurrency      = errors.New("cart items must share one currency")
	ErrInvalidStatus      = errors.New("invalid order status")

	ErrOrderNotFound   = errors.New("order not found")
	ErrForbidden       = errors.New("order belongs to another user")
	ErrUnauthenticated = errors.New("authentication required")

	ErrOrderNotPayable    = errors.New("order is not awaiting payment")
	ErrCheckoutInProgress = errors.New("a checkout session is already open for this order")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrUnresolvedEvent    = errors.New("payment event does not match any order")

	ErrPaymentNotConfigured = errors.New("payment provider is not configured")
	ErrPaymentUnavailable   = errors.New("payment provider unavailable, retry later")
)
