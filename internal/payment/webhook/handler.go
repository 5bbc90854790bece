package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"onetee-be/internal/logger"
	"onetee-be/internal/metrics"
	"onetee-be/internal/order"
	"onetee-be/internal/payment"
	"onetee-be/internal/utils"

	"go.uber.org/zap"
)

const (
	maxBodyBytes     = 64 << 10
	defaultDBTimeout = 5 * time.Second
)

// EventParser authenticates a raw delivery.
type EventParser interface {
	Parse(ctx context.Context, payload []byte, signature string) (*payment.Event, error)
}

// Reconciler applies a verified event to the order it refers to.
type Reconciler interface {
	ApplyPaymentEvent(ctx context.Context, provider string, ev *payment.Event) (order.TransitionResult, error)
}

type Observer interface {
	WebhookOutcome(provider, eventType, outcome string)
}

type Handler struct {
	parser     EventParser
	deliveries payment.Repository
	orders     Reconciler
	observer   Observer
	provider   string
	dbTimeout  time.Duration
}

// NewHandler bounds each delivery-log call by dbTimeout; zero means five seconds.
func NewHandler(parser EventParser, deliveries payment.Repository, orders Reconciler, observer Observer, dbTimeout time.Duration) *Handler {
	if dbTimeout <= 0 {
		dbTimeout = defaultDBTimeout
	}
	return &Handler{
		parser:     parser,
		deliveries: deliveries,
		orders:     orders,
		observer:   observer,
		provider:   payment.ProviderStripe,
		dbTimeout:  dbTimeout,
	}
}

var ack = map[string]bool{"received": true}

// ServeHTTP handles POST /shop/webhook/stripe. Every delivery that is
// authentic and was either applied or can never be applied is acknowledged
// with 200; storage failures answer 500 so the provider retries.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "webhook"),
		zap.String("provider", h.provider),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook body too large", zap.Int64("limit", tooLarge.Limit))
			h.observe("unknown", metrics.OutcomeRejected)
			utils.WriteJSONError(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.observe("unknown", metrics.OutcomeRejected)
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	ev, err := h.parser.Parse(ctx, body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrWebhookSecretMissing) {
			log.Error("webhook rejected: no signing secret configured")
		} else {
			log.Warn("webhook rejected", zap.Error(err))
		}
		h.observe("unknown", metrics.OutcomeRejected)
		utils.WriteJSONError(w, "invalid webhook", http.StatusBadRequest)
		return
	}

	log = log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	recordCtx, cancel := context.WithTimeout(ctx, h.dbTimeout)
	deliveryID, fresh, err := h.deliveries.RecordDelivery(recordCtx, payment.Delivery{
		Provider:  h.provider,
		EventID:   ev.ID,
		EventType: ev.Type,
		OrderRef:  ev.OrderRef,
		Payload:   ev.Payload,
	})
	cancel()
	if err != nil {
		log.Error("failed to record webhook delivery", zap.Error(err))
		h.observe(ev.Type, metrics.OutcomeFailed)
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !fresh {
		log.Info("webhook already processed")
		h.acknowledge(w, ev.Type, metrics.OutcomeDuplicate)
		return
	}

	outcome := metrics.OutcomeIgnored
	if ev.Kind != payment.KindIgnored {
		result, err := h.orders.ApplyPaymentEvent(ctx, h.provider, ev)
		switch {
		case errors.Is(err, order.ErrUnresolvedEvent):
			log.Warn("webhook does not match an order", zap.Error(err))
			outcome = metrics.OutcomeUnresolved
		case err != nil:
			log.Error("failed to apply webhook", zap.Error(err))
			h.fail(ctx, deliveryID, err)
			h.observe(ev.Type, metrics.OutcomeFailed)
			utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
			return
		default:
			outcome = string(result)
		}
	}

	markCtx, cancel := context.WithTimeout(ctx, h.dbTimeout)
	err = h.deliveries.MarkProcessed(markCtx, deliveryID)
	cancel()
	if err != nil {
		log.Error("failed to mark webhook processed", zap.Int64("delivery_id", deliveryID), zap.Error(err))
		h.fail(ctx, deliveryID, err)
		h.observe(ev.Type, metrics.OutcomeFailed)
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.acknowledge(w, ev.Type, outcome)
}

func (h *Handler) acknowledge(w http.ResponseWriter, eventType, outcome string) {
	h.observe(eventType, outcome)
	utils.WriteJSON(w, http.StatusOK, ack)
}

func (h *Handler) fail(ctx context.Context, deliveryID int64, cause error) {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.dbTimeout)
	defer cancel()

	if err := h.deliveries.MarkFailed(failCtx, deliveryID, cause.Error()); err != nil {
		logger.FromCtx(ctx).Error("failed to mark webhook failed",
			zap.Int64("delivery_id", deliveryID), zap.Error(err))
	}
}

func (h *Handler) observe(eventType, outcome string) {
	if h.observer != nil {
		h.observer.WebhookOutcome(h.provider, eventType, outcome)
	}
}
