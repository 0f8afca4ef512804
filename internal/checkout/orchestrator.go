package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/checkout-core/internal/catalog"
	"github.com/example/checkout-core/internal/clock"
	"github.com/example/checkout-core/internal/domain/inventory"
	"github.com/example/checkout-core/internal/domain/order"
	"github.com/example/checkout-core/internal/domain/payment"
	"github.com/example/checkout-core/internal/domain/reservation"
	"github.com/example/checkout-core/internal/metrics"
	"github.com/example/checkout-core/internal/notification"
	"go.uber.org/zap"
)

// FailureReason is the definitive outcome code a caller receives when a
// checkout does not produce a paid order.
type FailureReason string

const (
	ReasonInsufficientStock     FailureReason = "INSUFFICIENT_STOCK"
	ReasonPaymentDeclined       FailureReason = "PAYMENT_DECLINED"
	ReasonProviderUnavailable   FailureReason = "PAYMENT_PROVIDER_UNAVAILABLE"
	ReasonInternalInconsistency FailureReason = "INTERNAL_INCONSISTENCY"
)

// Error carries the failure reason alongside the underlying cause.
type Error struct {
	Reason  FailureReason
	OrderID string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from a checkout error.
func ReasonOf(err error) (FailureReason, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason, true
	}
	return "", false
}

// CartLine is one cart entry entering checkout.
type CartLine struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
}

const (
	actorCheckout = "checkout-orchestrator"
	actorRecovery = "recovery-sweep"
)

// Config wires the orchestrator's collaborators. Reservations, Orders,
// Payments, Catalog and Emitter are required; Metrics, Clock and Logger may
// be left nil (Clock defaults to the system clock, Logger to a no-op, and a
// nil Metrics disables instrumentation).
type Config struct {
	Reservations *reservation.Coordinator
	Orders       *order.Service
	Payments     *payment.Service
	Catalog      catalog.Catalog
	Emitter      *notification.Emitter
	Metrics      *metrics.CheckoutMetrics
	Clock        clock.Clock
	Logger       *zap.Logger
}

// Orchestrator runs the checkout saga: hold stock, snapshot the order,
// charge, then confirm — compensating with release/cancel when a later step
// fails after an earlier one succeeded.
type Orchestrator struct {
	reservations *reservation.Coordinator
	orders       *order.Service
	payments     *payment.Service
	catalog      catalog.Catalog
	emitter      *notification.Emitter
	metrics      *metrics.CheckoutMetrics
	clk          clock.Clock
	logger       *zap.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Orchestrator{
		reservations: cfg.Reservations,
		orders:       cfg.Orders,
		payments:     cfg.Payments,
		catalog:      cfg.Catalog,
		emitter:      cfg.Emitter,
		metrics:      cfg.Metrics,
		clk:          clk,
		logger:       logger,
	}
}

// Checkout converts a cart into a paid order or returns a definitive
// failure. Inventory is reserved before the charge and confirmed or released
// after it resolves; no inventory lock is held across the gateway call.
func (o *Orchestrator) Checkout(ctx context.Context, customerID string, lines []CartLine, method payment.Method) (order.Order, error) {
	start := time.Now()

	// Step 1: hold stock, all lines or none.
	resLines := make([]reservation.Line, len(lines))
	for i, l := range lines {
		resLines[i] = reservation.Line{ProductID: l.ProductID, WarehouseID: l.WarehouseID, Quantity: l.Quantity}
	}
	res, err := o.reservations.Hold(ctx, customerID, resLines)
	if err != nil {
		reason := ReasonInternalInconsistency
		if errors.Is(err, inventory.ErrInsufficientStock) {
			reason = ReasonInsufficientStock
		}
		o.observe(reason, start)
		return order.Order{}, &Error{Reason: reason, Err: err}
	}

	// Step 2: snapshot line items from the catalog, once.
	items, err := o.snapshotItems(ctx, lines)
	if err != nil {
		o.rollbackHold(ctx, res.ID)
		o.observe(ReasonInternalInconsistency, start)
		return order.Order{}, &Error{Reason: ReasonInternalInconsistency, Err: err}
	}

	ord, err := o.orders.Create(ctx, customerID, res.ID, items)
	if err != nil {
		o.rollbackHold(ctx, res.ID)
		o.observe(ReasonInternalInconsistency, start)
		return order.Order{}, &Error{Reason: ReasonInternalInconsistency, Err: err}
	}
	if err := o.reservations.AttachOrder(res.ID, ord.ID); err != nil {
		o.logger.Warn("failed to attach order to reservation",
			zap.String("order_id", ord.ID),
			zap.String("reservation_id", res.ID),
			zap.Error(err))
	}

	// Step 3: confirm the order.
	if err := o.orders.Transition(ctx, ord.ID, order.StatusConfirmed, actorCheckout, "reservation held"); err != nil {
		o.compensate(ctx, res.ID, ord.ID, customerID, "order confirmation failed")
		o.observe(ReasonInternalInconsistency, start)
		return order.Order{}, &Error{Reason: ReasonInternalInconsistency, OrderID: ord.ID, Err: err}
	}

	// Step 4: charge. The payment service derives the idempotency key from
	// the order ID, so a retried charge cannot double-bill.
	pay, err := o.payments.Charge(ctx, ord.ID, customerID, ord.Total, method)
	if err != nil {
		reason := ReasonPaymentDeclined
		if errors.Is(err, payment.ErrProviderUnavailable) {
			reason = ReasonProviderUnavailable
		}
		o.emitter.PaymentFailed(ctx, ord.ID, customerID, err.Error(), o.clk.Now())
		o.compensate(ctx, res.ID, ord.ID, customerID, string(reason))
		o.observe(reason, start)
		return order.Order{}, &Error{Reason: reason, OrderID: ord.ID, Err: err}
	}

	if err := o.orders.AttachPayment(ord.ID, pay.ID); err != nil {
		o.logger.Warn("failed to attach payment to order",
			zap.String("order_id", ord.ID), zap.Error(err))
	}

	// The charge stands from here on. A failure below is a broken invariant:
	// no compensation (a blind refund could mask a deeper bug); the order is
	// flagged and the recovery sweep re-drives confirm + PAID.
	if err := o.reservations.Confirm(ctx, res.ID); err != nil {
		return order.Order{}, o.fatal(ctx, ord.ID, start, "charge completed but reservation confirm failed", err)
	}
	if err := o.orders.Transition(ctx, ord.ID, order.StatusPaid, actorCheckout, "payment "+pay.ID+" completed"); err != nil {
		return order.Order{}, o.fatal(ctx, ord.ID, start, "charge completed but paid transition failed", err)
	}

	o.emitter.OrderConfirmed(ctx, ord.ID, customerID, o.clk.Now())
	o.observeSuccess(start)
	o.logger.Info("checkout complete",
		zap.String("order_id", ord.ID),
		zap.String("customer_id", customerID),
		zap.String("payment_id", pay.ID),
		zap.String("total", ord.Total.String()))

	final, _ := o.orders.Get(ord.ID)
	return final, nil
}

func (o *Orchestrator) snapshotItems(ctx context.Context, lines []CartLine) ([]order.Item, error) {
	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		snap, err := o.catalog.SnapshotOf(ctx, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", l.ProductID, err)
		}
		items = append(items, order.Item{
			ProductID:   snap.ProductID,
			WarehouseID: l.WarehouseID,
			Name:        snap.Name,
			UnitPrice:   snap.UnitPrice,
			Quantity:    l.Quantity,
		})
	}
	return items, nil
}

// rollbackHold undoes a hold before any order side effects exist.
func (o *Orchestrator) rollbackHold(ctx context.Context, reservationID string) {
	if err := o.reservations.Cancel(ctx, reservationID); err != nil {
		o.logger.Error("failed to cancel reservation during rollback",
			zap.String("reservation_id", reservationID),
			zap.Error(err))
	}
}

// compensate unwinds a failed checkout after the order exists: release the
// hold, cancel the order, notify.
func (o *Orchestrator) compensate(ctx context.Context, reservationID, orderID, customerID, reason string) {
	o.rollbackHold(ctx, reservationID)
	if err := o.orders.Transition(ctx, orderID, order.StatusCancelled, actorCheckout, reason); err != nil {
		o.logger.Error("failed to cancel order during compensation",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
	o.emitter.OrderCancelled(ctx, orderID, customerID, reason, o.clk.Now())
}

// fatal handles a broken invariant after a successful charge.
func (o *Orchestrator) fatal(ctx context.Context, orderID string, start time.Time, msg string, err error) error {
	o.logger.Error(msg,
		zap.String("order_id", orderID),
		zap.Error(err))
	if flagErr := o.orders.FlagForReconciliation(ctx, orderID, msg); flagErr != nil {
		o.logger.Error("failed to flag order for reconciliation",
			zap.String("order_id", orderID),
			zap.Error(flagErr))
	}
	if o.metrics != nil {
		o.metrics.ReconciliationFlags.Inc()
	}
	o.observe(ReasonInternalInconsistency, start)
	return &Error{Reason: ReasonInternalInconsistency, OrderID: orderID, Err: err}
}

func (o *Orchestrator) observe(reason FailureReason, start time.Time) {
	if o.metrics == nil {
		return
	}
	result := string(reason)
	o.metrics.Checkouts.WithLabelValues(result).Inc()
	o.metrics.DurationMS.WithLabelValues(result).Observe(float64(time.Since(start).Milliseconds()))
}

func (o *Orchestrator) observeSuccess(start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.Checkouts.WithLabelValues("success").Inc()
	o.metrics.DurationMS.WithLabelValues("success").Observe(float64(time.Since(start).Milliseconds()))
}
