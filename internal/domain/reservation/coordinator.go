package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/checkout-core/internal/clock"
	"github.com/example/checkout-core/internal/domain/inventory"
	"github.com/example/checkout-core/internal/infrastructure/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHoldTTL bounds how long an unconfirmed hold may lock stock.
const DefaultHoldTTL = 15 * time.Minute

// held wraps a reservation with its own mutex. All status changes and line
// releases for one reservation are serialized through it, which is what makes
// an explicit cancel and the expiry sweep safe to race.
type held struct {
	mu  sync.Mutex
	res Reservation
}

// Coordinator owns reservations: it is the only writer of reservation status
// and the only caller of ledger confirm/release for held lines.
type Coordinator struct {
	ledger  *inventory.Ledger
	journal store.Journal
	clk     clock.Clock
	logger  *zap.Logger
	holdTTL time.Duration

	mu   sync.RWMutex
	held map[string]*held
}

type Option func(*Coordinator)

// WithHoldTTL overrides the default expiry window for new holds.
func WithHoldTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.holdTTL = d
		}
	}
}

func NewCoordinator(ledger *inventory.Ledger, journal store.Journal, clk clock.Clock, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		ledger:  ledger,
		journal: journal,
		clk:     clk,
		logger:  logger,
		holdTTL: DefaultHoldTTL,
		held:    make(map[string]*held),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// normalizeLines validates, merges duplicate (product, warehouse) pairs and
// sorts the result. The fixed acquisition order prevents lock-ordering
// deadlock between concurrent holds over overlapping products.
func normalizeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	merged := make(map[inventory.Key]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%s/%s: %w", l.ProductID, l.WarehouseID, ErrInvalidQuantity)
		}
		merged[inventory.Key{ProductID: l.ProductID, WarehouseID: l.WarehouseID}] += l.Quantity
	}
	out := make([]Line, 0, len(merged))
	for k, qty := range merged {
		out = append(out, Line{ProductID: k.ProductID, WarehouseID: k.WarehouseID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, nil
}

// Hold reserves every line or none. On the first failing line all lines
// already reserved on this attempt are released before the error is returned.
func (c *Coordinator) Hold(ctx context.Context, customerID string, lines []Line) (Reservation, error) {
	norm, err := normalizeLines(lines)
	if err != nil {
		return Reservation{}, err
	}

	for i, line := range norm {
		if err := c.ledger.Reserve(ctx, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			// Compensate the lines reserved so far, newest first.
			for j := i - 1; j >= 0; j-- {
				prev := norm[j]
				if relErr := c.ledger.Release(ctx, prev.ProductID, prev.WarehouseID, prev.Quantity); relErr != nil {
					c.logger.Error("failed to release line while compensating hold",
						zap.String("product_id", prev.ProductID),
						zap.String("warehouse_id", prev.WarehouseID),
						zap.Error(relErr))
				}
			}
			return Reservation{}, fmt.Errorf("hold for customer %s: %w", customerID, err)
		}
	}

	now := c.clk.Now()
	res := Reservation{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Lines:      norm,
		Status:     StatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.holdTTL),
	}

	c.mu.Lock()
	c.held[res.ID] = &held{res: res}
	c.mu.Unlock()

	c.append(ctx, res.ID, EventReservationHeld, ReservationHeld{
		ReservationID: res.ID,
		CustomerID:    customerID,
		Lines:         norm,
		ExpiresAt:     res.ExpiresAt,
		HeldAt:        now,
	})
	return res.clone(), nil
}

// AttachOrder links the order created for this reservation. Set once.
func (c *Coordinator) AttachOrder(reservationID, orderID string) error {
	h, err := c.lookup(reservationID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.res.Status != StatusActive {
		return fmt.Errorf("reservation %s is %s: %w", reservationID, h.res.Status, ErrNotActive)
	}
	if h.res.OrderID != "" && h.res.OrderID != orderID {
		return fmt.Errorf("reservation %s: %w", reservationID, ErrOrderAttached)
	}
	h.res.OrderID = orderID
	return nil
}

// Confirm moves every held line from reserved to committed and marks the
// reservation CONFIRMED. Confirming an already-confirmed reservation is a
// no-op so the recovery sweep can re-drive a crashed checkout. A line that
// fails to confirm is a fatal inconsistency: the error is surfaced and the
// reservation is left as-is for reconciliation, never silently patched.
func (c *Coordinator) Confirm(ctx context.Context, reservationID string) error {
	h, err := c.lookup(reservationID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.res.Status {
	case StatusConfirmed:
		return nil
	case StatusCancelled, StatusExpired:
		return fmt.Errorf("reservation %s is %s: %w", reservationID, h.res.Status, ErrNotActive)
	}

	for _, line := range h.res.Lines {
		if err := c.ledger.Confirm(ctx, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			c.logger.Error("reservation confirm diverged from ledger",
				zap.String("reservation_id", reservationID),
				zap.String("product_id", line.ProductID),
				zap.String("warehouse_id", line.WarehouseID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
			return fmt.Errorf("confirm reservation %s line %s/%s: %w",
				reservationID, line.ProductID, line.WarehouseID, err)
		}
	}

	h.res.Status = StatusConfirmed
	c.append(ctx, reservationID, EventReservationConfirmed, ReservationConfirmed{
		ReservationID: reservationID,
		OrderID:       h.res.OrderID,
		ConfirmedAt:   c.clk.Now(),
	})
	return nil
}

// Cancel releases every still-held line and marks the reservation CANCELLED.
// Cancelling a reservation that is already terminal (or confirmed) is a
// no-op; lines are only released when the status flips from ACTIVE, so a
// cancel racing the expiry sweep can never release twice.
func (c *Coordinator) Cancel(ctx context.Context, reservationID string) error {
	h, err := c.lookup(reservationID)
	if err != nil {
		return err
	}
	return c.terminate(ctx, h, StatusCancelled)
}

// Restore returns a CONFIRMED reservation's committed stock to the shelf and
// marks the reservation CANCELLED. Used when a paid order is cancelled after
// its lines were committed. Restoring an already-cancelled reservation is a
// no-op; an ACTIVE or EXPIRED one holds no committed stock and is rejected.
// A line that fails to restore is surfaced and the reservation left as-is,
// never silently patched.
func (c *Coordinator) Restore(ctx context.Context, reservationID string) error {
	h, err := c.lookup(reservationID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.res.Status {
	case StatusCancelled:
		return nil
	case StatusActive, StatusExpired:
		return fmt.Errorf("reservation %s is %s: %w", reservationID, h.res.Status, ErrNotConfirmed)
	}

	for _, line := range h.res.Lines {
		if err := c.ledger.Restore(ctx, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			c.logger.Error("reservation restore diverged from ledger",
				zap.String("reservation_id", reservationID),
				zap.String("product_id", line.ProductID),
				zap.String("warehouse_id", line.WarehouseID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
			return fmt.Errorf("restore reservation %s line %s/%s: %w",
				reservationID, line.ProductID, line.WarehouseID, err)
		}
	}

	h.res.Status = StatusCancelled
	c.append(ctx, reservationID, EventReservationCancelled, ReservationCancelled{
		ReservationID: reservationID,
		OrderID:       h.res.OrderID,
		CancelledAt:   c.clk.Now(),
	})
	return nil
}

// SweepExpired cancels every ACTIVE reservation whose expiry has passed and
// returns how many were released. Abandoned checkouts therefore never lock
// stock beyond the hold TTL.
func (c *Coordinator) SweepExpired(ctx context.Context) int {
	now := c.clk.Now()

	c.mu.RLock()
	candidates := make([]*held, 0)
	for _, h := range c.held {
		candidates = append(candidates, h)
	}
	c.mu.RUnlock()

	swept := 0
	for _, h := range candidates {
		h.mu.Lock()
		expired := h.res.Status == StatusActive && now.After(h.res.ExpiresAt)
		h.mu.Unlock()
		if !expired {
			continue
		}
		if err := c.terminate(ctx, h, StatusExpired); err != nil {
			c.logger.Error("failed to expire reservation",
				zap.String("reservation_id", h.res.ID),
				zap.Error(err))
			continue
		}
		swept++
	}
	return swept
}

// Get returns a copy of the reservation.
func (c *Coordinator) Get(reservationID string) (Reservation, bool) {
	h, err := c.lookup(reservationID)
	if err != nil {
		return Reservation{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.res.clone(), true
}

func (c *Coordinator) lookup(reservationID string) (*held, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.held[reservationID]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, ErrNotFound)
	}
	return h, nil
}

// terminate releases held lines and moves an ACTIVE reservation to a
// terminal state. Non-ACTIVE reservations are left alone.
func (c *Coordinator) terminate(ctx context.Context, h *held, to Status) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.res.Status != StatusActive {
		return nil
	}

	for _, line := range h.res.Lines {
		if err := c.ledger.Release(ctx, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			c.logger.Error("reservation release diverged from ledger",
				zap.String("reservation_id", h.res.ID),
				zap.String("product_id", line.ProductID),
				zap.String("warehouse_id", line.WarehouseID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
			return fmt.Errorf("release reservation %s line %s/%s: %w",
				h.res.ID, line.ProductID, line.WarehouseID, err)
		}
	}

	h.res.Status = to
	now := c.clk.Now()
	switch to {
	case StatusCancelled:
		c.append(ctx, h.res.ID, EventReservationCancelled, ReservationCancelled{
			ReservationID: h.res.ID,
			OrderID:       h.res.OrderID,
			CancelledAt:   now,
		})
	case StatusExpired:
		c.append(ctx, h.res.ID, EventReservationExpired, ReservationExpired{
			ReservationID: h.res.ID,
			CustomerID:    h.res.CustomerID,
			ExpiredAt:     now,
		})
	}
	return nil
}

func (c *Coordinator) append(ctx context.Context, reservationID, eventType string, data any) {
	if c.journal == nil {
		return
	}
	if _, err := c.journal.Append(ctx, reservationID, AggregateType, eventType, data); err != nil {
		c.logger.Error("failed to journal reservation event",
			zap.String("reservation_id", reservationID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
