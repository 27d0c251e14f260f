package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutStarted *prometheus.CounterVec
	CheckoutCreated *prometheus.CounterVec
	CheckoutFailed  *prometheus.CounterVec

	// Orders
	OrderValue      *prometheus.HistogramVec
	OrdersPaid      prometheus.Counter
	OrdersCancelled *prometheus.CounterVec

	// Inventory
	StockMovements      *prometheus.CounterVec
	StockUnitsDeducted  prometheus.Counter
	OversoldDeductions  prometheus.Counter
	InventoryAdjustment *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookDuplicate *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Notifications
	NotificationsPublished *prometheus.CounterVec

	// External API performance
	StripeAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates business metrics registered on reg. A nil reg
// uses the default Prometheus registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "quartermaster"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	subsystem := "business"

	return &BusinessMetrics{
		// =======================================================================
		// Checkout Funnel
		// =======================================================================
		CheckoutStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkout requests received",
			},
			[]string{"flow"}, // flow: simple, enhanced
		),
		CheckoutCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_sessions_created_total",
				Help:      "Total hosted checkout sessions created",
			},
			[]string{"flow", "shipping_method"},
		),
		CheckoutFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_failed_total",
				Help:      "Total checkout requests rejected or failed",
			},
			[]string{"flow", "reason"}, // reason: error code
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrderValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_pounds",
				Help:      "Order total including shipping and VAT",
				Buckets:   []float64{10, 20, 30, 50, 75, 100, 150, 250, 500},
			},
			[]string{"shipping_method"},
		),
		OrdersPaid: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_paid_total",
				Help:      "Total orders marked paid by webhook",
			},
		),
		OrdersCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_cancelled_total",
				Help:      "Total orders cancelled",
			},
			[]string{"reason"}, // reason: event type or checkout_failed
		),

		// =======================================================================
		// Inventory
		// =======================================================================
		StockMovements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_movements_total",
				Help:      "Total inventory movements recorded",
			},
			[]string{"movement_type"},
		),
		StockUnitsDeducted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_units_sold_total",
				Help:      "Total units deducted by order fulfilment",
			},
		),
		OversoldDeductions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_oversold_total",
				Help:      "Deductions where ordered quantity exceeded stock and was floored at zero",
			},
		),
		InventoryAdjustment: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "inventory_adjustments_total",
				Help:      "Total admin inventory adjustments",
			},
			[]string{"action", "status"}, // action: adjust, set, bulk
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total webhooks received",
			},
			[]string{"provider", "event_type"},
		),
		WebhookProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total webhooks processed successfully",
			},
			[]string{"provider", "event_type"},
		),
		WebhookFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total webhook processing failures",
			},
			[]string{"provider", "event_type", "reason"},
		),
		WebhookDuplicate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duplicate_total",
				Help:      "Total webhook deliveries skipped as already processed",
			},
			[]string{"provider", "event_type"},
		),
		WebhookLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"provider", "event_type"},
		),

		// =======================================================================
		// Notifications
		// =======================================================================
		NotificationsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "notifications_published_total",
				Help:      "Total order notifications published",
			},
			[]string{"event", "status"}, // status: sent, failed
		),

		// =======================================================================
		// External API Performance
		// =======================================================================
		StripeAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stripe_api_duration_seconds",
				Help:      "Stripe API call duration (helps differentiate app slowness from Stripe issues)",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
	}
}

// Global instance for easy access from handlers and services. Nil until
// InitBusinessMetrics is called; callers must check before use.
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, nil)
	return Business
}
