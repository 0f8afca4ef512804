package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/checkout-core/internal/clock"
	"github.com/example/checkout-core/internal/infrastructure/store"
	"go.uber.org/zap"
)

const AggregateType = "Inventory"

var (
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationMismatch = errors.New("reserved stock does not cover request")
	ErrCommittedMismatch   = errors.New("committed stock does not cover request")
	ErrRecordNotFound      = errors.New("inventory record not found")
	ErrInvalidAdjustment   = errors.New("invalid inventory adjustment")
)

// AdjustReason classifies administrative stock corrections.
type AdjustReason string

const (
	ReasonRestock AdjustReason = "RESTOCK"
	ReasonDamage  AdjustReason = "DAMAGE"
	ReasonRecount AdjustReason = "RECOUNT"
)

// Key identifies one inventory record. Each (product, warehouse) pair is an
// independent unit of atomicity.
type Key struct {
	ProductID   string
	WarehouseID string
}

func (k Key) String() string {
	return k.ProductID + "/" + k.WarehouseID
}

// record holds the four counters guarded by their own mutex. The invariant
// available + reserved + committed + damaged == totalOnHand holds after every
// operation; available never goes negative.
type record struct {
	mu        sync.Mutex
	available int
	reserved  int
	committed int
	damaged   int
	updatedAt time.Time
}

// Snapshot is a point-in-time copy of one record's counters.
type Snapshot struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Available   int       `json:"available"`
	Reserved    int       `json:"reserved"`
	Committed   int       `json:"committed"`
	Damaged     int       `json:"damaged"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s Snapshot) TotalOnHand() int {
	return s.Available + s.Reserved + s.Committed + s.Damaged
}

// Ledger is the authoritative owner of per-(product, warehouse) stock
// counters. Callers never touch counters directly; every mutation goes
// through Reserve, Confirm, Release or Adjust and is journaled as a movement
// event.
type Ledger struct {
	mu      sync.RWMutex
	records map[Key]*record

	journal store.Journal
	clk     clock.Clock
	logger  *zap.Logger
}

func NewLedger(journal store.Journal, clk clock.Clock, logger *zap.Logger) *Ledger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		records: make(map[Key]*record),
		journal: journal,
		clk:     clk,
		logger:  logger,
	}
}

func (l *Ledger) get(key Key) (*record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[key]
	return rec, ok
}

func (l *Ledger) getOrCreate(key Key) *record {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		rec = &record{}
		l.records[key] = rec
	}
	return rec
}

// Reserve atomically moves qty from available to reserved. Two concurrent
// reservations can never both succeed on the last unit: the availability
// check and the counter move happen under the record mutex.
func (l *Ledger) Reserve(ctx context.Context, productID, warehouseID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	key := Key{ProductID: productID, WarehouseID: warehouseID}
	rec, ok := l.get(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrInsufficientStock)
	}

	now := l.clk.Now()
	rec.mu.Lock()
	if rec.available < qty {
		rec.mu.Unlock()
		return fmt.Errorf("%s: have %d, want %d: %w", key, rec.available, qty, ErrInsufficientStock)
	}
	rec.available -= qty
	rec.reserved += qty
	rec.updatedAt = now
	rec.mu.Unlock()

	l.append(ctx, key, EventStockReserved, StockReserved{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		ReservedAt:  now,
	})
	return nil
}

// Confirm moves qty from reserved to committed. A shortfall in reserved
// indicates an upstream bug and is surfaced, never clamped.
func (l *Ledger) Confirm(ctx context.Context, productID, warehouseID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	key := Key{ProductID: productID, WarehouseID: warehouseID}
	rec, ok := l.get(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrRecordNotFound)
	}

	now := l.clk.Now()
	rec.mu.Lock()
	if rec.reserved < qty {
		rec.mu.Unlock()
		return fmt.Errorf("%s: reserved %d, confirm %d: %w", key, rec.reserved, qty, ErrReservationMismatch)
	}
	rec.reserved -= qty
	rec.committed += qty
	rec.updatedAt = now
	rec.mu.Unlock()

	l.append(ctx, key, EventStockCommitted, StockCommitted{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		CommittedAt: now,
	})
	return nil
}

// Release moves qty from reserved back to available. Used on cancellation,
// expiry and hold compensation.
func (l *Ledger) Release(ctx context.Context, productID, warehouseID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	key := Key{ProductID: productID, WarehouseID: warehouseID}
	rec, ok := l.get(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrRecordNotFound)
	}

	now := l.clk.Now()
	rec.mu.Lock()
	if rec.reserved < qty {
		rec.mu.Unlock()
		return fmt.Errorf("%s: reserved %d, release %d: %w", key, rec.reserved, qty, ErrReservationMismatch)
	}
	rec.reserved -= qty
	rec.available += qty
	rec.updatedAt = now
	rec.mu.Unlock()

	l.append(ctx, key, EventStockReleased, StockReleased{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		ReleasedAt:  now,
	})
	return nil
}

// Restore moves qty from committed back to available, returning already-sold
// stock to the shelf when a paid order is cancelled. A shortfall in committed
// indicates an upstream bug and is surfaced, never clamped.
func (l *Ledger) Restore(ctx context.Context, productID, warehouseID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	key := Key{ProductID: productID, WarehouseID: warehouseID}
	rec, ok := l.get(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrRecordNotFound)
	}

	now := l.clk.Now()
	rec.mu.Lock()
	if rec.committed < qty {
		rec.mu.Unlock()
		return fmt.Errorf("%s: committed %d, restore %d: %w", key, rec.committed, qty, ErrCommittedMismatch)
	}
	rec.committed -= qty
	rec.available += qty
	rec.updatedAt = now
	rec.mu.Unlock()

	l.append(ctx, key, EventStockRestored, StockRestored{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		RestoredAt:  now,
	})
	return nil
}

// Adjust applies an administrative correction. RESTOCK adds new stock,
// DAMAGE writes available stock off to the damaged counter, RECOUNT corrects
// available after a manual count. Adjustments never touch reserved or
// committed stock.
func (l *Ledger) Adjust(ctx context.Context, productID, warehouseID string, delta int, reason AdjustReason) error {
	key := Key{ProductID: productID, WarehouseID: warehouseID}
	now := l.clk.Now()

	switch reason {
	case ReasonRestock:
		if delta <= 0 {
			return fmt.Errorf("restock delta must be positive: %w", ErrInvalidAdjustment)
		}
		rec := l.getOrCreate(key)
		rec.mu.Lock()
		rec.available += delta
		rec.updatedAt = now
		rec.mu.Unlock()

	case ReasonDamage:
		if delta >= 0 {
			return fmt.Errorf("damage delta must be negative: %w", ErrInvalidAdjustment)
		}
		rec, ok := l.get(key)
		if !ok {
			return fmt.Errorf("%s: %w", key, ErrRecordNotFound)
		}
		rec.mu.Lock()
		if rec.available < -delta {
			rec.mu.Unlock()
			return fmt.Errorf("%s: available %d, damage %d: %w", key, rec.available, -delta, ErrInvalidAdjustment)
		}
		rec.available += delta
		rec.damaged += -delta
		rec.updatedAt = now
		rec.mu.Unlock()

	case ReasonRecount:
		if delta == 0 {
			return fmt.Errorf("recount delta must be non-zero: %w", ErrInvalidAdjustment)
		}
		rec := l.getOrCreate(key)
		rec.mu.Lock()
		if rec.available+delta < 0 {
			rec.mu.Unlock()
			return fmt.Errorf("%s: available %d, recount %d: %w", key, rec.available, delta, ErrInvalidAdjustment)
		}
		rec.available += delta
		rec.updatedAt = now
		rec.mu.Unlock()

	default:
		return fmt.Errorf("unknown reason %q: %w", reason, ErrInvalidAdjustment)
	}

	l.append(ctx, key, EventStockAdjusted, StockAdjusted{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Delta:       delta,
		Reason:      string(reason),
		AdjustedAt:  now,
	})
	return nil
}

// View returns a copy of the record's counters.
func (l *Ledger) View(productID, warehouseID string) (Snapshot, bool) {
	key := Key{ProductID: productID, WarehouseID: warehouseID}
	rec, ok := l.get(key)
	if !ok {
		return Snapshot{}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return Snapshot{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Available:   rec.available,
		Reserved:    rec.reserved,
		Committed:   rec.committed,
		Damaged:     rec.damaged,
		UpdatedAt:   rec.updatedAt,
	}, true
}

// append journals a movement event. The counter mutation has already taken
// effect, so a journal failure is logged rather than propagated.
func (l *Ledger) append(ctx context.Context, key Key, eventType string, data any) {
	if l.journal == nil {
		return
	}
	if _, err := l.journal.Append(ctx, key.String(), AggregateType, eventType, data); err != nil {
		l.logger.Error("failed to journal inventory movement",
			zap.String("record", key.String()),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
