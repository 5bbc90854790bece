package payment

import "errors"

var (
	ErrUnavailable          = errors.New("payment provider unavailable")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedEvent       = errors.New("malformed webhook event")
	ErrWebhookSecretMissing = errors.New("webhook secret is not configured")
)
