package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/example/checkout-core/internal/clock"
	"github.com/example/checkout-core/internal/domain/inventory"
	"github.com/example/checkout-core/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *inventory.Ledger, *clock.Manual, *mocks.MockJournal) {
	t.Helper()
	journal := mocks.NewMockJournal()
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := inventory.NewLedger(journal, clk, nil)
	coord := NewCoordinator(ledger, journal, clk, nil)
	return coord, ledger, clk, journal
}

func seedStock(t *testing.T, ledger *inventory.Ledger, productID, warehouseID string, qty int) {
	t.Helper()
	require.NoError(t, ledger.Adjust(context.Background(), productID, warehouseID, qty, inventory.ReasonRestock))
}

// ============================================
// Hold Tests
// ============================================

func TestCoordinator_Hold_Success(t *testing.T) {
	coord, ledger, clk, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	seedStock(t, ledger, "prod-2", "wh-1", 5)

	res, err := coord.Hold(ctx, "cust-1", []Line{
		{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 2},
		{ProductID: "prod-2", WarehouseID: "wh-1", Quantity: 1},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, StatusActive, res.Status)
	assert.Equal(t, clk.Now().Add(DefaultHoldTTL), res.ExpiresAt)

	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 8, snap.Available)
	assert.Equal(t, 2, snap.Reserved)
	assert.Len(t, journal.CallsOfType(EventReservationHeld), 1)
}

func TestCoordinator_Hold_AllOrNothing(t *testing.T) {
	coord, ledger, _, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-a", "wh-1", 10)
	seedStock(t, ledger, "prod-b", "wh-1", 1)

	_, err := coord.Hold(ctx, "cust-1", []Line{
		{ProductID: "prod-a", WarehouseID: "wh-1", Quantity: 2},
		{ProductID: "prod-b", WarehouseID: "wh-1", Quantity: 5},
	})

	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// The line that did reserve was compensated back.
	snapA, _ := ledger.View("prod-a", "wh-1")
	assert.Equal(t, 10, snapA.Available)
	assert.Equal(t, 0, snapA.Reserved)
	snapB, _ := ledger.View("prod-b", "wh-1")
	assert.Equal(t, 1, snapB.Available)
	assert.Empty(t, journal.CallsOfType(EventReservationHeld))
}

func TestCoordinator_Hold_MergesDuplicateLines(t *testing.T) {
	coord, ledger, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)

	res, err := coord.Hold(ctx, "cust-1", []Line{
		{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 2},
		{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 3},
	})

	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 5, res.Lines[0].Quantity)

	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 5, snap.Reserved)
}

func TestCoordinator_Hold_EmptyLines(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.Hold(context.Background(), "cust-1", nil)

	assert.ErrorIs(t, err, ErrNoLines)
}

func TestCoordinator_Hold_NonPositiveQuantity(t *testing.T) {
	coord, ledger, _, _ := newTestCoordinator(t)
	seedStock(t, ledger, "prod-1", "wh-1", 10)

	_, err := coord.Hold(context.Background(), "cust-1", []Line{
		{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 0},
	})

	assert.ErrorIs(t, err, ErrInvalidQuantity)
	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 10, snap.Available)
}

// ============================================
// Confirm Tests
// ============================================

func TestCoordinator_Confirm_CommitsLines(t *testing.T) {
	coord, ledger, _, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, err := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})
	require.NoError(t, err)

	require.NoError(t, coord.Confirm(ctx, res.ID))

	got, ok := coord.Get(res.ID)
	require.True(t, ok)
	assert.Equal(t, StatusConfirmed, got.Status)

	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 6, snap.Available)
	assert.Equal(t, 0, snap.Reserved)
	assert.Equal(t, 4, snap.Committed)
	assert.Len(t, journal.CallsOfType(EventReservationConfirmed), 1)
}

func TestCoordinator_Confirm_Idempotent(t *testing.T) {
	coord, ledger, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})

	require.NoError(t, coord.Confirm(ctx, res.ID))
	require.NoError(t, coord.Confirm(ctx, res.ID))

	// Committed once, not twice.
	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 4, snap.Committed)
}

func TestCoordinator_Confirm_CancelledReservation(t *testing.T) {
	coord, ledger, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})
	require.NoError(t, coord.Cancel(ctx, res.ID))

	err := coord.Confirm(ctx, res.ID)

	assert.ErrorIs(t, err, ErrNotActive)
}

func TestCoordinator_Confirm_NotFound(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	err := coord.Confirm(context.Background(), "ghost")

	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================
// Cancel Tests
// ============================================

func TestCoordinator_Cancel_ReleasesLines(t *testing.T) {
	coord, ledger, _, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})

	require.NoError(t, coord.Cancel(ctx, res.ID))

	got, _ := coord.Get(res.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 10, snap.Available)
	assert.Equal(t, 0, snap.Reserved)
	assert.Len(t, journal.CallsOfType(EventReservationCancelled), 1)
}

func TestCoordinator_Cancel_Idempotent(t *testing.T) {
	coord, ledger, _, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})

	require.NoError(t, coord.Cancel(ctx, res.ID))
	require.NoError(t, coord.Cancel(ctx, res.ID))

	// Released once, not twice.
	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 10, snap.Available)
	assert.Len(t, journal.CallsOfType(EventReservationCancelled), 1)
}

// ============================================
// Restore Tests
// ============================================

func TestCoordinator_Restore_ReturnsCommittedStock(t *testing.T) {
	coord, ledger, _, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})
	require.NoError(t, coord.Confirm(ctx, res.ID))

	require.NoError(t, coord.Restore(ctx, res.ID))

	got, _ := coord.Get(res.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 10, snap.Available)
	assert.Equal(t, 0, snap.Committed)
	assert.Len(t, journal.CallsOfType(EventReservationCancelled), 1)
}

func TestCoordinator_Restore_Idempotent(t *testing.T) {
	coord, ledger, _, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})
	require.NoError(t, coord.Confirm(ctx, res.ID))

	require.NoError(t, coord.Restore(ctx, res.ID))
	require.NoError(t, coord.Restore(ctx, res.ID))

	// Restored once, not twice.
	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 10, snap.Available)
	assert.Len(t, journal.CallsOfType(EventReservationCancelled), 1)
}

func TestCoordinator_Restore_ActiveReservation(t *testing.T) {
	coord, ledger, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})

	err := coord.Restore(ctx, res.ID)

	assert.ErrorIs(t, err, ErrNotConfirmed)
	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 4, snap.Reserved)
}

// ============================================
// Attach Order Tests
// ============================================

func TestCoordinator_AttachOrder(t *testing.T) {
	coord, ledger, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 1}})

	require.NoError(t, coord.AttachOrder(res.ID, "order-1"))

	got, _ := coord.Get(res.ID)
	assert.Equal(t, "order-1", got.OrderID)

	// Re-attaching the same order is fine; a different order is not.
	assert.NoError(t, coord.AttachOrder(res.ID, "order-1"))
	assert.ErrorIs(t, coord.AttachOrder(res.ID, "order-2"), ErrOrderAttached)
}

// ============================================
// Expiry Sweep Tests
// ============================================

func TestCoordinator_SweepExpired_RestoresStock(t *testing.T) {
	coord, ledger, clk, journal := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})

	clk.Advance(DefaultHoldTTL + time.Second)
	swept := coord.SweepExpired(ctx)

	assert.Equal(t, 1, swept)
	got, _ := coord.Get(res.ID)
	assert.Equal(t, StatusExpired, got.Status)

	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 10, snap.Available)
	assert.Equal(t, 0, snap.Reserved)
	assert.Len(t, journal.CallsOfType(EventReservationExpired), 1)
}

func TestCoordinator_SweepExpired_SkipsFreshHolds(t *testing.T) {
	coord, ledger, clk, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})

	clk.Advance(DefaultHoldTTL - time.Second)
	swept := coord.SweepExpired(ctx)

	assert.Equal(t, 0, swept)
	got, _ := coord.Get(res.ID)
	assert.Equal(t, StatusActive, got.Status)
}

func TestCoordinator_SweepExpired_SkipsConfirmed(t *testing.T) {
	coord, ledger, clk, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedStock(t, ledger, "prod-1", "wh-1", 10)
	res, _ := coord.Hold(ctx, "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 4}})
	require.NoError(t, coord.Confirm(ctx, res.ID))

	clk.Advance(DefaultHoldTTL + time.Hour)
	swept := coord.SweepExpired(ctx)

	// Confirmed before expiry: committed stock stays committed.
	assert.Equal(t, 0, swept)
	snap, _ := ledger.View("prod-1", "wh-1")
	assert.Equal(t, 4, snap.Committed)
	assert.Equal(t, 0, snap.Reserved)
}

func TestCoordinator_WithHoldTTL(t *testing.T) {
	journal := mocks.NewMockJournal()
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := inventory.NewLedger(journal, clk, nil)
	coord := NewCoordinator(ledger, journal, clk, nil, WithHoldTTL(5*time.Minute))
	seedStock(t, ledger, "prod-1", "wh-1", 10)

	res, err := coord.Hold(context.Background(), "cust-1", []Line{{ProductID: "prod-1", WarehouseID: "wh-1", Quantity: 1}})

	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(5*time.Minute), res.ExpiresAt)
}
