package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"onetee-be/internal/config"
	"onetee-be/internal/logger"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const signatureTolerance = 5 * time.Minute

// Verifier authenticates Stripe webhook deliveries and reduces them to Events.
type Verifier struct {
	secret        string
	allowUnsigned bool
}

// NewVerifier honours PAYMENT_ALLOW_UNSIGNED_WEBHOOKS only outside production.
func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{
		secret:        cfg.Payment.StripeWebhookSecret,
		allowUnsigned: cfg.Payment.AllowUnsignedWebhooks && !cfg.IsProduction(),
	}
}

func (v *Verifier) Parse(ctx context.Context, payload []byte, signature string) (*Event, error) {
	var raw stripe.Event

	switch {
	case v.secret != "":
		ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
			Tolerance:                signatureTolerance,
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		raw = ev

	case v.allowUnsigned:
		logger.FromCtx(ctx).Warn("accepting unsigned webhook: STRIPE_WEBHOOK_SECRET is not set",
			zap.String("layer", "webhook"),
		)
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}

	default:
		return nil, ErrWebhookSecretMissing
	}

	return interpret(raw, payload)
}

// expandable decodes a Stripe reference that is either an id string or an
// expanded object carrying an id.
type expandable string

func (e *expandable) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandable(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandable(obj.ID)
	return nil
}

type eventObject struct {
	ID                string            `json:"id"`
	Metadata          map[string]string `json:"metadata"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentIntent     expandable        `json:"payment_intent"`
	Refunded          bool              `json:"refunded"`
}

func interpret(raw stripe.Event, payload []byte) (*Event, error) {
	if raw.ID == "" || raw.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}

	ev := &Event{
		ID:      raw.ID,
		Type:    string(raw.Type),
		Kind:    KindIgnored,
		Payload: json.RawMessage(payload),
	}

	var obj eventObject
	if raw.Data != nil && len(raw.Data.Raw) > 0 {
		if err := json.Unmarshal(raw.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
	}

	switch raw.Type {
	case "checkout.session.completed":
		ev.Kind = KindPaid
		ev.OrderRef = obj.Metadata["order_id"]
		if ev.OrderRef == "" {
			ev.OrderRef = obj.ClientReferenceID
		}
		ev.PaymentRef = string(obj.PaymentIntent)
		if ev.PaymentRef == "" {
			ev.PaymentRef = obj.ID
		}

	case "payment_intent.succeeded":
		ev.Kind = KindPaid
		ev.OrderRef = obj.Metadata["order_id"]
		ev.PaymentRef = obj.ID

	case "payment_intent.canceled":
		ev.Kind = KindCancelled
		ev.OrderRef = obj.Metadata["order_id"]
		ev.PaymentRef = obj.ID

	case "charge.refunded":
		if obj.Refunded {
			ev.Kind = KindRefunded
			ev.PaymentRef = string(obj.PaymentIntent)
			ev.ResolveByPayment = true
		}
	}

	return ev, nil
}
