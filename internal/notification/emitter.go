package notification

import (
	"context"
	"time"

	"github.com/example/checkout-core/internal/infrastructure/store"
	"go.uber.org/zap"
)

// Emitter publishes notification events through the journal. Delivery is
// fire-and-forget: a failed append is logged and never fails a checkout.
type Emitter struct {
	journal store.Journal
	logger  *zap.Logger
}

func NewEmitter(journal store.Journal, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{journal: journal, logger: logger}
}

func (e *Emitter) OrderConfirmed(ctx context.Context, orderID, customerID string, at time.Time) {
	e.emit(ctx, orderID, EventOrderConfirmed, OrderConfirmed{
		OrderID:    orderID,
		CustomerID: customerID,
		At:         at,
	})
}

func (e *Emitter) OrderCancelled(ctx context.Context, orderID, customerID, reason string, at time.Time) {
	e.emit(ctx, orderID, EventOrderCancelled, OrderCancelled{
		OrderID:    orderID,
		CustomerID: customerID,
		Reason:     reason,
		At:         at,
	})
}

func (e *Emitter) PaymentFailed(ctx context.Context, orderID, customerID, reason string, at time.Time) {
	e.emit(ctx, orderID, EventPaymentFailed, PaymentFailed{
		OrderID:    orderID,
		CustomerID: customerID,
		Reason:     reason,
		At:         at,
	})
}

func (e *Emitter) emit(ctx context.Context, orderID, eventType string, data any) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Append(ctx, orderID, AggregateType, eventType, data); err != nil {
		e.logger.Warn("notification event dropped",
			zap.String("order_id", orderID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
