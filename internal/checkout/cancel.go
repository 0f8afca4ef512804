package checkout

import (
	"context"
	"fmt"

	"github.com/example/checkout-core/internal/domain/order"
	"github.com/example/checkout-core/internal/domain/payment"
	"github.com/example/checkout-core/internal/domain/reservation"
	"go.uber.org/zap"
)

// Cancel cancels a customer's own order. Before payment it just releases
// the hold; once paid it also refunds whatever balance remains and returns
// the committed stock to the shelf. Shipped and delivered orders cannot be
// cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, orderID, customerID, reason string) (order.Order, error) {
	ord, ok := o.orders.Get(orderID)
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	if ord.CustomerID != customerID {
		return order.Order{}, order.ErrNotOwner
	}
	if !ord.Status.CanTransitionTo(order.StatusCancelled) {
		return order.Order{}, fmt.Errorf("%w: cannot cancel from %s", order.ErrInvalidTransition, ord.Status)
	}

	// Refund before flipping status so a refund failure leaves the order
	// cancellable rather than cancelled-but-unrefunded.
	if ord.PaymentID != "" {
		if _, err := o.refundRemaining(ctx, ord.PaymentID, reason); err != nil {
			return order.Order{}, fmt.Errorf("refund on cancel: %w", err)
		}
	}

	if ord.ReservationID != "" {
		if err := o.releaseReservation(ctx, ord.ReservationID); err != nil {
			o.logger.Warn("failed to release reservation for cancelled order",
				zap.String("order_id", orderID),
				zap.String("reservation_id", ord.ReservationID),
				zap.Error(err))
		}
	}

	if err := o.orders.Transition(ctx, orderID, order.StatusCancelled, customerID, reason); err != nil {
		return order.Order{}, err
	}
	o.emitter.OrderCancelled(ctx, orderID, customerID, reason, o.clk.Now())

	final, _ := o.orders.Get(orderID)
	return final, nil
}

// Refund refunds the full remaining balance of an order's payment and moves
// the order to refunded.
func (o *Orchestrator) Refund(ctx context.Context, orderID, reason string) (order.Order, error) {
	ord, ok := o.orders.Get(orderID)
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	if ord.PaymentID == "" {
		return order.Order{}, fmt.Errorf("order %s has no payment to refund", orderID)
	}
	if !ord.Status.CanTransitionTo(order.StatusRefunded) {
		return order.Order{}, fmt.Errorf("%w: cannot refund from %s", order.ErrInvalidTransition, ord.Status)
	}

	refund, err := o.refundRemaining(ctx, ord.PaymentID, reason)
	if err != nil {
		return order.Order{}, err
	}
	if err := o.orders.Transition(ctx, orderID, order.StatusRefunded, actorCheckout, reason); err != nil {
		return order.Order{}, err
	}
	o.logger.Info("order refunded",
		zap.String("order_id", orderID),
		zap.String("refund_id", refund.ID),
		zap.String("amount", refund.Amount.String()))

	final, _ := o.orders.Get(orderID)
	return final, nil
}

// releaseReservation undoes a cancelled order's hold on stock. A CONFIRMED
// reservation has its committed lines restored to available; anything else
// goes through the plain cancel path.
func (o *Orchestrator) releaseReservation(ctx context.Context, reservationID string) error {
	if res, ok := o.reservations.Get(reservationID); ok && res.Status == reservation.StatusConfirmed {
		return o.reservations.Restore(ctx, reservationID)
	}
	return o.reservations.Cancel(ctx, reservationID)
}

func (o *Orchestrator) refundRemaining(ctx context.Context, paymentID, reason string) (payment.Refund, error) {
	remaining, err := o.payments.Remaining(paymentID)
	if err != nil {
		return payment.Refund{}, err
	}
	if remaining.IsZero() {
		return payment.Refund{}, nil
	}
	return o.payments.Refund(ctx, paymentID, remaining, reason)
}
