package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/checkout-core/internal/clock"
	"github.com/example/checkout-core/internal/infrastructure/store"
	"github.com/example/checkout-core/internal/money"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service owns orders and their transition history.
type Service struct {
	mu      sync.RWMutex
	orders  map[string]*Order
	history map[string][]TransitionRecord

	journal store.Journal
	clk     clock.Clock
	logger  *zap.Logger
}

func NewService(journal store.Journal, clk clock.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders:  make(map[string]*Order),
		history: make(map[string][]TransitionRecord),
		journal: journal,
		clk:     clk,
		logger:  logger,
	}
}

// Create stores a new PENDING order from snapshot items. Items must share
// one currency.
func (s *Service) Create(ctx context.Context, customerID, reservationID string, items []Item) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyOrder
	}

	total := money.Zero(items[0].UnitPrice.Currency)
	for _, item := range items {
		var err error
		total, err = total.Add(item.Subtotal())
		if err != nil {
			return Order{}, fmt.Errorf("order total: %w", err)
		}
	}

	now := s.clk.Now()
	o := &Order{
		ID:            uuid.New().String(),
		CustomerID:    customerID,
		Items:         append([]Item(nil), items...),
		Total:         total,
		Status:        StatusPending,
		ReservationID: reservationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()

	s.append(ctx, o.ID, EventOrderCreated, OrderCreated{
		OrderID:       o.ID,
		CustomerID:    customerID,
		ReservationID: reservationID,
		Items:         o.Items,
		Total:         total,
		CreatedAt:     now,
	})
	return o.clone(), nil
}

// Transition moves the order to a new status if the transition table allows
// it, appending an audit record. An illegal transition mutates nothing.
func (s *Service) Transition(ctx context.Context, orderID string, to Status, actor, reason string) error {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	from := o.Status
	if !from.CanTransitionTo(to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
	}

	now := s.clk.Now()
	o.Status = to
	o.UpdatedAt = now
	rec := TransitionRecord{
		OrderID: orderID,
		From:    from,
		To:      to,
		Actor:   actor,
		Reason:  reason,
		At:      now,
	}
	s.history[orderID] = append(s.history[orderID], rec)
	s.mu.Unlock()

	s.append(ctx, orderID, EventOrderTransitioned, OrderTransitioned{
		OrderID: orderID,
		From:    from,
		To:      to,
		Actor:   actor,
		Reason:  reason,
		At:      now,
	})
	return nil
}

// AttachPayment links the successful payment to the order.
func (s *Service) AttachPayment(orderID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	o.PaymentID = paymentID
	return nil
}

// FlagForReconciliation marks an order whose saga left ledger and order
// state in disagreement. Logged at error level and journaled.
func (s *Service) FlagForReconciliation(ctx context.Context, orderID, reason string) error {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	o.NeedsReconciliation = true
	o.ReconcileReason = reason
	o.UpdatedAt = s.clk.Now()
	s.mu.Unlock()

	s.logger.Error("order flagged for reconciliation",
		zap.String("order_id", orderID),
		zap.String("reason", reason))
	s.append(ctx, orderID, EventOrderFlagged, OrderFlagged{
		OrderID:   orderID,
		Reason:    reason,
		FlaggedAt: s.clk.Now(),
	})
	return nil
}

// ClearReconciliation resets the flag after a recovery pass completed.
func (s *Service) ClearReconciliation(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok {
		o.NeedsReconciliation = false
		o.ReconcileReason = ""
	}
}

// Get returns a copy of the order.
func (s *Service) Get(orderID string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

// History returns a copy of the append-only transition audit for an order.
func (s *Service) History(orderID string) []TransitionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.history[orderID]
	out := make([]TransitionRecord, len(recs))
	copy(out, recs)
	return out
}

// ListByStatus returns copies of all orders currently in the given status.
func (s *Service) ListByStatus(status Status) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o.clone())
		}
	}
	return out
}

func (s *Service) append(ctx context.Context, orderID, eventType string, data any) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Append(ctx, orderID, AggregateType, eventType, data); err != nil {
		s.logger.Error("failed to journal order event",
			zap.String("order_id", orderID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
