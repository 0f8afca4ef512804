package checkout

import (
	"context"
	"time"

	"github.com/example/checkout-core/internal/domain/order"
	"github.com/example/checkout-core/internal/domain/payment"
	"go.uber.org/zap"
)

// Recover re-drives orders stranded mid-saga: a confirmed order whose
// payment completed but which never reached paid means the process died (or
// an invariant broke) between charge and confirm. Reservation confirm is
// idempotent, so re-driving a partially completed order is safe. Orders
// younger than grace are skipped; their checkout may still be in flight.
// Returns the number of orders recovered.
func (o *Orchestrator) Recover(ctx context.Context, grace time.Duration) int {
	cutoff := o.clk.Now().Add(-grace)
	recovered := 0
	for _, ord := range o.orders.ListByStatus(order.StatusConfirmed) {
		if ord.UpdatedAt.After(cutoff) {
			continue
		}
		pay, ok := o.payments.GetByOrder(ord.ID)
		if !ok || pay.Status != payment.StatusCompleted {
			continue
		}
		if err := o.recoverOne(ctx, ord, pay.ID); err != nil {
			o.logger.Error("recovery failed",
				zap.String("order_id", ord.ID),
				zap.Error(err))
			continue
		}
		recovered++
		if o.metrics != nil {
			o.metrics.RecoveredOrders.Inc()
		}
	}
	return recovered
}

func (o *Orchestrator) recoverOne(ctx context.Context, ord order.Order, paymentID string) error {
	if err := o.reservations.Confirm(ctx, ord.ReservationID); err != nil {
		return err
	}
	if ord.PaymentID == "" {
		if err := o.orders.AttachPayment(ord.ID, paymentID); err != nil {
			return err
		}
	}
	if err := o.orders.Transition(ctx, ord.ID, order.StatusPaid, actorRecovery, "re-driven after interrupted checkout"); err != nil {
		return err
	}
	o.orders.ClearReconciliation(ord.ID)
	o.emitter.OrderConfirmed(ctx, ord.ID, ord.CustomerID, o.clk.Now())
	o.logger.Info("order recovered",
		zap.String("order_id", ord.ID),
		zap.String("payment_id", paymentID))
	return nil
}
