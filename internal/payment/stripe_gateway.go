package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"onetee-be/internal/config"
	"onetee-be/internal/logger"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
)

type stripeGateway struct {
	sessions session.Client
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
}

// NewStripeGateway builds a Stripe Checkout gateway. httpClient may be nil.
func NewStripeGateway(cfg config.PaymentConfig, httpClient *http.Client) Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     logger.L().Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
	}

	return &stripeGateway{
		sessions: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.StripeSecretKey,
		},
		breaker: newBreaker("stripe-checkout", func(err error) bool {
			return err == nil || !isUnavailable(err)
		}),
		timeout: cfg.Timeout,
	}
}

func (g *stripeGateway) Name() string {
	return ProviderStripe
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("provider", ProviderStripe),
		zap.String("order_id", req.OrderID),
	)

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": req.OrderID},
		},
	}
	params.AddMetadata("order_id", req.OrderID)
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}

	currency := strings.ToLower(req.Currency)
	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}

	cs, err := executeWithBreaker(g.breaker, func() (*stripe.CheckoutSession, error) {
		return g.sessions.New(params)
	})
	if err != nil {
		log.Error("failed to create checkout session", zap.Error(err))
		return nil, classify(err)
	}

	log.Info("checkout session created", zap.String("session_id", cs.ID))
	return &Session{
		ID:        cs.ID,
		URL:       cs.URL,
		ExpiresAt: time.Unix(cs.ExpiresAt, 0).UTC(),
	}, nil
}

func (g *stripeGateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	_, err := executeWithBreaker(g.breaker, func() (*stripe.CheckoutSession, error) {
		return g.sessions.Expire(sessionID, &stripe.CheckoutSessionExpireParams{
			Params: stripe.Params{Context: ctx},
		})
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (g *stripeGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// isUnavailable reports whether err is worth retrying later: transport
// failures, timeouts, throttling and provider-side 5xx.
func isUnavailable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}

func classify(err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("stripe: %w", err)
}
