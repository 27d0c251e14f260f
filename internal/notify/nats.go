package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/quartermaster/internal/telemetry"
	"github.com/nats-io/nats.go"
)

// publisher is the subset of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes events as JSON on "<prefix>.order.paid" and
// "<prefix>.order.cancelled".
type NATSNotifier struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
	logger *slog.Logger
}

// NewNATSNotifier connects to url. The connection reconnects forever in the
// background, so a broker restart only delays events.
func NewNATSNotifier(url, prefix string, logger *slog.Logger) (*NATSNotifier, error) {
	logger = logger.With("component", "notify")

	nc, err := nats.Connect(url,
		nats.Name("quartermaster"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	n := newNATSNotifier(nc, prefix, logger)
	n.conn = nc
	return n, nil
}

func newNATSNotifier(pub publisher, prefix string, logger *slog.Logger) *NATSNotifier {
	if prefix == "" {
		prefix = "quartermaster"
	}
	return &NATSNotifier{pub: pub, prefix: prefix, logger: logger}
}

func (n *NATSNotifier) OrderPaid(ctx context.Context, event OrderEvent) error {
	return n.publish(ctx, EventOrderPaid, event)
}

func (n *NATSNotifier) OrderCancelled(ctx context.Context, event OrderEvent) error {
	return n.publish(ctx, EventOrderCancelled, event)
}

// Subject returns the full subject an event is published on.
func (n *NATSNotifier) Subject(name string) string {
	return n.prefix + "." + name
}

func (n *NATSNotifier) publish(ctx context.Context, name string, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		recordPublished(name, err)
		return fmt.Errorf("marshal %s event: %w", name, err)
	}

	subject := n.Subject(name)
	if err := n.pub.Publish(subject, data); err != nil {
		recordPublished(name, err)
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	n.logger.DebugContext(ctx, "published order event",
		"subject", subject,
		"order_number", event.OrderNumber,
	)
	recordPublished(name, nil)
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

func recordPublished(name string, err error) {
	if telemetry.Business == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	telemetry.Business.NotificationsPublished.WithLabelValues(name, status).Inc()
}

var _ Notifier = (*NATSNotifier)(nil)
