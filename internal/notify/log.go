package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to the log. It is used when no broker is
// configured, which is the normal case in development.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) OrderPaid(ctx context.Context, event OrderEvent) error {
	n.log(ctx, EventOrderPaid, event)
	return nil
}

func (n *LogNotifier) OrderCancelled(ctx context.Context, event OrderEvent) error {
	n.log(ctx, EventOrderCancelled, event)
	return nil
}

func (n *LogNotifier) Close() error { return nil }

func (n *LogNotifier) log(ctx context.Context, name string, event OrderEvent) {
	n.logger.InfoContext(ctx, "order notification",
		"event", name,
		"order_number", event.OrderNumber,
		"status", event.Status,
		"total", event.Total.String(),
	)
	recordPublished(name, nil)
}

var _ Notifier = (*LogNotifier)(nil)
