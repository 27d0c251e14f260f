package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/handler"
	"github.com/dukerupert/quartermaster/internal/middleware"
	"github.com/dukerupert/quartermaster/internal/service"
	"github.com/dukerupert/quartermaster/internal/telemetry"
)

const providerLabel = "stripe"

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider    billing.Provider
	fulfillment service.FulfillmentService
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(provider billing.Provider, fulfillment service.FulfillmentService) *StripeHandler {
	return &StripeHandler{
		provider:    provider,
		fulfillment: fulfillment,
	}
}

type webhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// HandleWebhook processes incoming Stripe webhook events
//
// Mount behind middleware.MaxBodySize(middleware.WebhookMaxBodySize).
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/api/webhooks/stripe
//	stripe trigger checkout.session.completed
//
// Response codes:
//   - 200: processed, duplicate, ignored, or rejected for a reason a retry
//     cannot fix (unknown order, missing metadata)
//   - 400: unreadable body or bad signature
//   - 500: transient failure; Stripe retries and the event claim makes the
//     retry safe
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "webhook.read", "Request body too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.Invalid("webhook.read", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.verify", "Invalid signature"))
		return
	}

	event, err := h.provider.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrMalformedEvent) {
			handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.decode", "Invalid event payload"))
			return
		}
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.verify", "Invalid signature"))
		return
	}

	logger = logger.With("event_id", event.ID, "event_type", event.Type)
	logger.Info("webhook received")
	telemetry.AddBreadcrumb(ctx, "webhook", "stripe event received", map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(providerLabel, event.Type).Inc()
	}
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(providerLabel, event.Type).Observe(time.Since(startTime).Seconds())
		}
	}()

	switch event.Type {
	case billing.EventCheckoutSessionCompleted:
		if event.Session != nil && event.Session.PaymentStatus == billing.SessionPaymentUnpaid {
			// Delayed payment methods complete the session first and settle
			// later with async_payment_succeeded or async_payment_failed.
			logger.Info("checkout completed, awaiting async payment", "order_number", event.Session.OrderNumber())
			h.acknowledge(w, event.Type)
			return
		}
		_, err = h.fulfillment.MarkPaid(ctx, sessionEvent(event))

	case billing.EventCheckoutSessionAsyncPaymentSucceeded:
		_, err = h.fulfillment.MarkPaid(ctx, sessionEvent(event))

	case billing.EventCheckoutSessionExpired,
		billing.EventCheckoutSessionAsyncPaymentFailed:
		_, err = h.fulfillment.Cancel(ctx, sessionEvent(event))

	case billing.EventPaymentIntentPaymentFailed:
		_, err = h.fulfillment.Cancel(ctx, paymentIntentEvent(event))

	default:
		logger.Debug("unhandled event type")
		h.acknowledge(w, event.Type)
		return
	}

	if err != nil {
		h.handleError(w, r, event, err)
		return
	}

	h.acknowledge(w, event.Type)
}

func (h *StripeHandler) acknowledge(w http.ResponseWriter, eventType string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(providerLabel, eventType).Inc()
	}
	handler.WriteJSON(w, http.StatusOK, webhookResponse{Received: true})
}

// handleError decides whether Stripe should retry. Duplicates and domain
// rejections are acknowledged; anything else is a 500.
func (h *StripeHandler) handleError(w http.ResponseWriter, r *http.Request, event *billing.Event, err error) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx).With("event_id", event.ID, "event_type", event.Type)

	if errors.Is(err, domain.ErrDuplicateEvent) {
		logger.Info("webhook already processed")
		if telemetry.Business != nil {
			telemetry.Business.WebhookDuplicate.WithLabelValues(providerLabel, event.Type).Inc()
		}
		handler.WriteJSON(w, http.StatusOK, webhookResponse{Received: true, Duplicate: true})
		return
	}

	code := domain.ErrorCode(err)
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(providerLabel, event.Type, code).Inc()
	}

	h.fulfillment.RecordWebhookError(ctx, event.ID, event.Type, err, event.Raw)
	telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"code":       code,
	})

	switch code {
	case domain.EINVALID, domain.ENOTFOUND, domain.ECONFLICT:
		logger.Warn("webhook rejected", "error", err, "code", code)
		handler.WriteJSON(w, http.StatusOK, webhookResponse{Received: true})
	default:
		logger.Error("webhook processing failed", "error", err, "code", code)
		handler.WriteJSON(w, http.StatusInternalServerError, handler.ErrorBody{
			Error: domain.ErrorMessage(err),
		})
	}
}

func sessionEvent(event *billing.Event) service.PaymentEvent {
	pe := service.PaymentEvent{
		EventID:   event.ID,
		EventType: event.Type,
	}
	if s := event.Session; s != nil {
		pe.OrderNumber = s.OrderNumber()
		pe.SessionID = s.ID
		pe.PaymentIntentID = s.PaymentIntentID
		pe.CustomerEmail = s.CustomerEmail
	}
	return pe
}

func paymentIntentEvent(event *billing.Event) service.PaymentEvent {
	pe := service.PaymentEvent{
		EventID:   event.ID,
		EventType: event.Type,
	}
	if pi := event.PaymentIntent; pi != nil {
		pe.OrderNumber = pi.OrderNumber()
		pe.PaymentIntentID = pi.ID
		pe.Reason = pi.LastErrorMessage
	}
	return pe
}
