package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"onetee-be/internal/auth"
	"onetee-be/internal/logger"
	"onetee-be/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// checkout result labels
const (
	checkoutCreated     = "created"
	checkoutConflict    = "conflict"
	checkoutUnavailable = "unavailable"
	checkoutFailed      = "failed"
)

// StartCheckout opens a hosted payment session for a pending order. At most
// one unexpired session exists per order; the claim is released whenever the
// provider call fails.
func (s *service) StartCheckout(ctx context.Context, identity auth.Identity, id uuid.UUID) (*CheckoutResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "StartCheckout"),
		zap.String("order_id", id.String()),
	)

	o, err := s.GetOrder(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotPayable, o.Status)
	}

	if !s.opts.PaymentConfigured || s.gateway == nil {
		log.Error("checkout requested but payment provider is not configured")
		return nil, ErrPaymentNotConfigured
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.opts.CheckoutTTL)

	claimed, err := s.claim(ctx, id, expiresAt, now)
	if err != nil {
		log.Error("failed to claim order for checkout", zap.Error(err))
		return nil, err
	}
	if !claimed {
		s.opts.Observer.CheckoutResult(checkoutConflict)
		return nil, ErrCheckoutInProgress
	}

	req := payment.CheckoutRequest{
		OrderID:    o.ID.String(),
		Currency:   strings.ToLower(o.Currency),
		Items:      lineItems(o.Items),
		SuccessURL: s.opts.PublicURL + "/community?checkout=success",
		CancelURL:  s.opts.PublicURL + "/community?checkout=cancel",
		ExpiresAt:  expiresAt,
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.release(ctx, id)
		if errors.Is(err, payment.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn("payment provider unavailable", zap.Error(err))
			s.opts.Observer.CheckoutResult(checkoutUnavailable)
			return nil, fmt.Errorf("%w: %w", ErrPaymentUnavailable, err)
		}
		log.Error("failed to create checkout session", zap.Error(err))
		s.opts.Observer.CheckoutResult(checkoutFailed)
		return nil, err
	}

	attached, err := s.attach(ctx, id, sess.ID)
	if err != nil {
		log.Error("failed to record checkout session", zap.String("session_id", sess.ID), zap.Error(err))
		s.expire(ctx, sess.ID)
		s.release(ctx, id)
		return nil, err
	}
	if !attached {
		log.Warn("order left pending before session was recorded", zap.String("session_id", sess.ID))
		s.expire(ctx, sess.ID)
		s.opts.Observer.CheckoutResult(checkoutConflict)
		return nil, ErrOrderNotPayable
	}

	if !sess.ExpiresAt.IsZero() {
		expiresAt = sess.ExpiresAt
	}

	s.opts.Observer.CheckoutResult(checkoutCreated)
	log.Info("checkout session created", zap.String("session_id", sess.ID))

	return &CheckoutResult{
		CheckoutURL: sess.URL,
		SessionID:   sess.ID,
		ExpiresAt:   expiresAt,
	}, nil
}

func lineItems(items []Item) []payment.LineItem {
	out := make([]payment.LineItem, 0, len(items))
	for _, it := range items {
		name := it.ProductName
		if name == "" {
			name = UnknownProductName
		}
		out = append(out, payment.LineItem{
			Name:       name,
			UnitAmount: it.UnitPriceCents,
			Quantity:   int64(it.Quantity),
		})
	}
	return out
}

func (s *service) claim(ctx context.Context, id uuid.UUID, until, now time.Time) (bool, error) {
	ctx, cancel := s.dbCtx(ctx)
	defer cancel()
	return s.repo.ClaimCheckout(ctx, id, until, now)
}

func (s *service) attach(ctx context.Context, id uuid.UUID, sessionID string) (bool, error) {
	ctx, cancel := s.dbCtx(ctx)
	defer cancel()
	return s.repo.AttachCheckoutSession(ctx, id, s.gateway.Name(), sessionID)
}

// release and expire are best-effort cleanups; they outlive a cancelled
// request context.
func (s *service) release(ctx context.Context, id uuid.UUID) {
	ctx, cancel := s.dbCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.repo.ReleaseCheckout(ctx, id); err != nil {
		logger.FromCtx(ctx).Error("failed to release checkout claim",
			zap.String("order_id", id.String()), zap.Error(err))
	}
}

func (s *service) expire(ctx context.Context, sessionID string) {
	if err := s.gateway.ExpireCheckoutSession(context.WithoutCancel(ctx), sessionID); err != nil {
		logger.FromCtx(ctx).Warn("failed to expire checkout session",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
