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
	"onetee-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service interface {
	CreateOrder(ctx context.Context, owner *uuid.UUID, entries []CartEntry) (*Order, error)
	GetOrder(ctx context.Context, identity auth.Identity, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, identity auth.Identity, filter ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, identity auth.Identity, id uuid.UUID, status Status) (*Order, error)
	StartCheckout(ctx context.Context, identity auth.Identity, id uuid.UUID) (*CheckoutResult, error)
	ApplyPaymentEvent(ctx context.Context, provider string, ev *payment.Event) (TransitionResult, error)
}

// Observer receives business counters.
type Observer interface {
	OrderCreated(currency string)
	CheckoutResult(result string)
}

type nopObserver struct{}

func (nopObserver) OrderCreated(string)   {}
func (nopObserver) CheckoutResult(string) {}

type Options struct {
	DBTimeout         time.Duration
	CheckoutTTL       time.Duration
	PublicURL         string
	PaymentConfigured bool
	Observer          Observer
}

type service struct {
	repo    Repository
	gateway payment.Gateway
	opts    Options
	now     func() time.Time
}

func NewService(repo Repository, gateway payment.Gateway, opts Options) Service {
	if opts.DBTimeout <= 0 {
		opts.DBTimeout = 5 * time.Second
	}
	if opts.CheckoutTTL <= 0 {
		opts.CheckoutTTL = 45 * time.Minute
	}
	if opts.PublicURL == "" {
		opts.PublicURL = "http://localhost:5173"
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &service{
		repo:    repo,
		gateway: gateway,
		opts:    opts,
		now:     time.Now,
	}
}

func (s *service) dbCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.DBTimeout)
}

func (s *service) CreateOrder(ctx context.Context, owner *uuid.UUID, entries []CartEntry) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.Int("entries", len(entries)),
	)

	if err := ValidateCart(entries); err != nil {
		log.Info("cart rejected", zap.Error(err))
		return nil, err
	}

	var ownerID uuid.NullUUID
	if owner != nil && *owner != uuid.Nil {
		ownerID = uuid.NullUUID{UUID: *owner, Valid: true}
	}

	ctx, cancel := s.dbCtx(ctx)
	defer cancel()

	o, skipped, err := s.repo.CreateOrder(ctx, ownerID, entries)
	if err != nil {
		if errors.Is(err, ErrNoPurchasableItems) || errors.Is(err, ErrMixedCurrency) || errors.Is(err, ErrInvalidQuantity) {
			log.Info("cart rejected", zap.Error(err))
		} else {
			log.Error("failed to create order", zap.Error(err))
		}
		return nil, err
	}

	for _, id := range skipped {
		log.Warn("skipped unavailable product", zap.String("product_id", id.String()))
	}

	s.opts.Observer.OrderCreated(o.Currency)
	log.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.Int64("total_cents", o.TotalCents),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, identity auth.Identity, id uuid.UUID) (*Order, error) {
	ctx, cancel := s.dbCtx(ctx)
	defer cancel()

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.Owns(o.UserID) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, identity auth.Identity, filter ListFilter) ([]Order, error) {
	if !identity.Authenticated() {
		return nil, ErrUnauthenticated
	}

	filter.Limit, filter.Offset = utils.ClampPage(filter.Limit, filter.Offset, defaultPageSize, maxPageSize)
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	if !identity.IsAdmin {
		uid := identity.UserID
		filter.UserID = &uid
	}

	ctx, cancel := s.dbCtx(ctx)
	defer cancel()

	return s.repo.ListOrders(ctx, filter)
}

// adminStatuses are the statuses an operator may set by hand.
var adminStatuses = map[Status]bool{
	StatusShipped:   true,
	StatusDelivered: true,
	StatusCancelled: true,
}

func (s *service) UpdateStatus(ctx context.Context, identity auth.Identity, id uuid.UUID, status Status) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateStatus"),
		zap.String("order_id", id.String()),
		zap.String("status", string(status)),
	)

	if !identity.IsAdmin {
		return nil, ErrForbidden
	}
	if !adminStatuses[status] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	ctx, cancel := s.dbCtx(ctx)
	defer cancel()

	result, prev, err := s.repo.TransitionStatus(ctx, Transition{
		OrderID: id,
		To:      status,
		Reason:  "admin:" + identity.UserID.String(),
	})
	if err != nil {
		return nil, err
	}
	if result == ResultStale {
		log.Info("transition refused", zap.String("from", string(prev)))
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, prev, status)
	}

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	// A pending order may still have an open checkout session.
	if status == StatusCancelled && result == ResultApplied && prev == StatusPending &&
		s.gateway != nil && o.PaymentID != nil && *o.PaymentID != "" {
		log.Info("expiring checkout session of cancelled order", zap.String("session_id", *o.PaymentID))
		s.expire(ctx, *o.PaymentID)
	}
	return o, nil
}

// ApplyPaymentEvent moves the order an event refers to. Events that cannot be
// tied to an order return ErrUnresolvedEvent.
func (s *service) ApplyPaymentEvent(ctx context.Context, provider string, ev *payment.Event) (TransitionResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ApplyPaymentEvent"),
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
	)

	var target Status
	switch ev.Kind {
	case payment.KindPaid:
		target = StatusPaid
	case payment.KindCancelled:
		target = StatusCancelled
	case payment.KindRefunded:
		target = StatusRefunded
	default:
		return "", fmt.Errorf("%w: event kind %q", ErrInvalidStatus, ev.Kind)
	}

	ctx, cancel := s.dbCtx(ctx)
	defer cancel()

	orderID, err := s.resolveOrder(ctx, ev)
	if err != nil {
		return "", err
	}

	result, prev, err := s.repo.TransitionStatus(ctx, Transition{
		OrderID:    orderID,
		To:         target,
		Provider:   provider,
		PaymentRef: ev.PaymentRef,
		Reason:     provider + ":" + ev.Type,
	})
	if errors.Is(err, ErrOrderNotFound) {
		return "", fmt.Errorf("%w: order %s", ErrUnresolvedEvent, orderID)
	}
	if err != nil {
		log.Error("failed to transition order", zap.Error(err))
		return "", err
	}

	fields := []zap.Field{
		zap.String("order_id", orderID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(target)),
		zap.String("result", string(result)),
	}
	if result == ResultStale && target == StatusPaid && (prev == StatusCancelled || prev == StatusRefunded) {
		// The customer was charged for an order that will not ship.
		log.Error("payment received for closed order", append(fields, zap.String("payment_ref", ev.PaymentRef))...)
		return result, nil
	}

	log.Info("payment event applied", fields...)
	return result, nil
}

func (s *service) resolveOrder(ctx context.Context, ev *payment.Event) (uuid.UUID, error) {
	if ev.ResolveByPayment {
		if ev.PaymentRef == "" {
			return uuid.Nil, fmt.Errorf("%w: no payment reference", ErrUnresolvedEvent)
		}
		id, err := s.repo.FindOrderIDByPaymentID(ctx, ev.PaymentRef)
		if errors.Is(err, ErrOrderNotFound) {
			return uuid.Nil, fmt.Errorf("%w: payment %s", ErrUnresolvedEvent, ev.PaymentRef)
		}
		return id, err
	}

	if ev.OrderRef == "" {
		return uuid.Nil, fmt.Errorf("%w: no order reference", ErrUnresolvedEvent)
	}
	id, err := uuid.Parse(ev.OrderRef)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad order reference %q", ErrUnresolvedEvent, ev.OrderRef)
	}
	return id, nil
}
