package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/example/checkout-core/internal/domain/order"
	"github.com/example/checkout-core/internal/domain/payment"
	"github.com/example/checkout-core/internal/domain/reservation"
	"github.com/example/checkout-core/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// strandOrder reproduces a checkout that died right after the charge: the
// reservation is still ACTIVE, the order CONFIRMED, the payment completed,
// but nothing was committed or marked paid.
func strandOrder(t *testing.T, f *fixture) order.Order {
	t.Helper()
	ctx := context.Background()
	f.stock(t, "prod-1", "wh-1", 10)

	res, err := f.reservations.Hold(ctx, "cust-1", []reservation.Line{
		{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 2},
	})
	require.NoError(t, err)

	items := []order.Item{{ProductID: "prod-1", WarehouseID: "wh-1", Name: "Widget", UnitPrice: f.mustPrice(t, "prod-1"), Quantity: 2}}
	ord, err := f.orders.Create(ctx, "cust-1", res.ID, items)
	require.NoError(t, err)
	require.NoError(t, f.reservations.AttachOrder(res.ID, ord.ID))
	require.NoError(t, f.orders.Transition(ctx, ord.ID, order.StatusConfirmed, "checkout-orchestrator", "reservation held"))

	_, err = f.payments.Charge(ctx, ord.ID, "cust-1", ord.Total, payment.MethodCreditCard)
	require.NoError(t, err)

	got, _ := f.orders.Get(ord.ID)
	return got
}

func TestRecover_RedrivesStrandedOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ord := strandOrder(t, f)

	f.clk.Advance(10 * time.Minute)
	recovered := f.orchestrator.Recover(ctx, 5*time.Minute)

	assert.Equal(t, 1, recovered)

	got, _ := f.orders.Get(ord.ID)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.NotEmpty(t, got.PaymentID)
	assert.False(t, got.NeedsReconciliation)

	res, _ := f.reservations.Get(ord.ReservationID)
	assert.Equal(t, reservation.StatusConfirmed, res.Status)

	snap, _ := f.ledger.View("prod-1", "wh-1")
	assert.Equal(t, 8, snap.Available)
	assert.Equal(t, 0, snap.Reserved)
	assert.Equal(t, 2, snap.Committed)

	assert.Len(t, f.journal.CallsOfType(notification.EventOrderConfirmed), 1)
}

func TestRecover_SkipsOrdersWithinGrace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ord := strandOrder(t, f)

	f.clk.Advance(time.Minute)
	recovered := f.orchestrator.Recover(ctx, 5*time.Minute)

	// The checkout may still be in flight; leave it alone.
	assert.Equal(t, 0, recovered)
	got, _ := f.orders.Get(ord.ID)
	assert.Equal(t, order.StatusConfirmed, got.Status)
}

func TestRecover_SkipsOrdersWithoutCompletedPayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.stock(t, "prod-1", "wh-1", 10)

	res, err := f.reservations.Hold(ctx, "cust-1", []reservation.Line{
		{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 1},
	})
	require.NoError(t, err)
	items := []order.Item{{ProductID: "prod-1", WarehouseID: "wh-1", Name: "Widget", UnitPrice: f.mustPrice(t, "prod-1"), Quantity: 1}}
	ord, err := f.orders.Create(ctx, "cust-1", res.ID, items)
	require.NoError(t, err)
	require.NoError(t, f.orders.Transition(ctx, ord.ID, order.StatusConfirmed, "checkout-orchestrator", ""))

	f.clk.Advance(time.Hour)
	recovered := f.orchestrator.Recover(ctx, 5*time.Minute)

	// No charge happened; this is the expiry sweep's problem, not recovery's.
	assert.Equal(t, 0, recovered)
	got, _ := f.orders.Get(ord.ID)
	assert.Equal(t, order.StatusConfirmed, got.Status)
}

func TestRecover_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	strandOrder(t, f)

	f.clk.Advance(10 * time.Minute)
	assert.Equal(t, 1, f.orchestrator.Recover(ctx, 5*time.Minute))
	assert.Equal(t, 0, f.orchestrator.Recover(ctx, 5*time.Minute))

	snap, _ := f.ledger.View("prod-1", "wh-1")
	assert.Equal(t, 2, snap.Committed)
}
