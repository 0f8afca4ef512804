package notification

import (
	"context"
	"encoding/json"

	"github.com/example/checkout-core/internal/infrastructure/store"
	"go.uber.org/zap"
)

// Handler is the consumer side: it picks notification events off Kafka and
// hands them to the delivery channel. Actual delivery (email, push) lives
// outside this core; the handler logs what it would forward.
type Handler struct {
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger}
}

// HandleEvent processes one event from Kafka. Non-notification events on the
// shared topic are skipped.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Warn("failed to unmarshal event", zap.Error(err))
		return err
	}

	switch event.EventType {
	case EventOrderConfirmed:
		var e OrderConfirmed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.logger.Info("order confirmation notification",
			zap.String("order_id", e.OrderID),
			zap.String("customer_id", e.CustomerID))
	case EventOrderCancelled:
		var e OrderCancelled
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.logger.Info("order cancellation notification",
			zap.String("order_id", e.OrderID),
			zap.String("customer_id", e.CustomerID),
			zap.String("reason", e.Reason))
	case EventPaymentFailed:
		var e PaymentFailed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		h.logger.Info("payment failure notification",
			zap.String("order_id", e.OrderID),
			zap.String("customer_id", e.CustomerID),
			zap.String("reason", e.Reason))
	}

	return nil
}
