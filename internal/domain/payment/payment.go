package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/checkout-core/internal/clock"
	"github.com/example/checkout-core/internal/infrastructure/store"
	"github.com/example/checkout-core/internal/money"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const AggregateType = "Payment"

type Method string

const (
	MethodCreditCard Method = "CREDIT_CARD"
	MethodUPI        Method = "UPI"
	MethodWallet     Method = "WALLET"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrNotRefundable        = errors.New("only completed payments can be refunded")
	ErrRefundExceedsBalance = errors.New("refund exceeds remaining balance")
	ErrInvalidRefundAmount  = errors.New("refund amount must be positive")
)

// Payment records one charge attempt outcome. Amount is immutable once
// completed; refunds are separate entities linked by PaymentID.
type Payment struct {
	ID             string      `json:"id"`
	OrderID        string      `json:"order_id"`
	CustomerID     string      `json:"customer_id"`
	Amount         money.Money `json:"amount"`
	Method         Method      `json:"method"`
	Status         Status      `json:"status"`
	ProviderRef    string      `json:"provider_ref,omitempty"`
	IdempotencyKey string      `json:"idempotency_key"`
	FailureReason  string      `json:"failure_reason,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ProcessedAt    time.Time   `json:"processed_at,omitempty"`
}

type Refund struct {
	ID          string      `json:"id"`
	PaymentID   string      `json:"payment_id"`
	Amount      money.Money `json:"amount"`
	Reason      string      `json:"reason"`
	ProviderRef string      `json:"provider_ref"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Service owns payment and refund records and drives the gateway through the
// retrying charger. The gateway call itself is never made while holding the
// service lock.
type Service struct {
	mu        sync.Mutex
	payments  map[string]*Payment
	completed map[string]string // orderID -> completed payment ID
	refunds   map[string][]Refund

	charger *Charger
	journal store.Journal
	clk     clock.Clock
	logger  *zap.Logger
}

func NewService(charger *Charger, journal store.Journal, clk clock.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		payments:  make(map[string]*Payment),
		completed: make(map[string]string),
		refunds:   make(map[string][]Refund),
		charger:   charger,
		journal:   journal,
		clk:       clk,
		logger:    logger,
	}
}

// Charge runs one charge attempt for the order. All attempts for one order
// share the deterministic idempotency key, so retries can never double-charge;
// if a completed payment already exists it is returned as-is.
func (s *Service) Charge(ctx context.Context, orderID, customerID string, amount money.Money, method Method) (Payment, error) {
	key := IdempotencyKey(orderID)

	s.mu.Lock()
	if pid, ok := s.completed[orderID]; ok {
		p := *s.payments[pid]
		s.mu.Unlock()
		return p, nil
	}
	p := &Payment{
		ID:             uuid.New().String(),
		OrderID:        orderID,
		CustomerID:     customerID,
		Amount:         amount,
		Method:         method,
		Status:         StatusPending,
		IdempotencyKey: key,
		CreatedAt:      s.clk.Now(),
	}
	s.payments[p.ID] = p
	s.mu.Unlock()

	ref, chargeErr := s.charger.Charge(ctx, orderID, amount, method, key)

	s.mu.Lock()
	p.ProcessedAt = s.clk.Now()
	if chargeErr != nil {
		p.Status = StatusFailed
		p.FailureReason = chargeErr.Error()
		out := *p
		s.mu.Unlock()
		s.append(ctx, p.ID, EventPaymentFailed, PaymentFailed{
			PaymentID: p.ID,
			OrderID:   orderID,
			Amount:    amount,
			Reason:    chargeErr.Error(),
			FailedAt:  p.ProcessedAt,
		})
		return out, chargeErr
	}
	p.Status = StatusCompleted
	p.ProviderRef = ref
	s.completed[orderID] = p.ID
	out := *p
	s.mu.Unlock()

	s.append(ctx, p.ID, EventPaymentCompleted, PaymentCompleted{
		PaymentID:     p.ID,
		OrderID:       orderID,
		Amount:        amount,
		TransactionID: ref,
		CompletedAt:   p.ProcessedAt,
	})
	return out, nil
}

// Refund issues a partial or full refund against a completed payment. The
// refunded total can never exceed the original amount.
func (s *Service) Refund(ctx context.Context, paymentID string, amount money.Money, reason string) (Refund, error) {
	if amount.Cents <= 0 {
		return Refund{}, ErrInvalidRefundAmount
	}

	s.mu.Lock()
	p, ok := s.payments[paymentID]
	if !ok {
		s.mu.Unlock()
		return Refund{}, fmt.Errorf("payment %s: %w", paymentID, ErrPaymentNotFound)
	}
	if p.Status != StatusCompleted && p.Status != StatusPartiallyRefunded {
		s.mu.Unlock()
		return Refund{}, fmt.Errorf("payment %s is %s: %w", paymentID, p.Status, ErrNotRefundable)
	}
	remaining, err := s.remainingLocked(p)
	if err != nil {
		s.mu.Unlock()
		return Refund{}, err
	}
	cmp, err := amount.Cmp(remaining)
	if err != nil {
		s.mu.Unlock()
		return Refund{}, err
	}
	if cmp > 0 {
		s.mu.Unlock()
		return Refund{}, fmt.Errorf("refund %s over remaining %s: %w", amount, remaining, ErrRefundExceedsBalance)
	}
	providerRef := p.ProviderRef
	s.mu.Unlock()

	ref, err := s.charger.Refund(ctx, providerRef, amount, reason)
	if err != nil {
		return Refund{}, err
	}

	s.mu.Lock()
	r := Refund{
		ID:          uuid.New().String(),
		PaymentID:   paymentID,
		Amount:      amount,
		Reason:      reason,
		ProviderRef: ref,
		CreatedAt:   s.clk.Now(),
	}
	s.refunds[paymentID] = append(s.refunds[paymentID], r)
	if remaining.Cents == amount.Cents {
		p.Status = StatusRefunded
	} else {
		p.Status = StatusPartiallyRefunded
	}
	s.mu.Unlock()

	s.append(ctx, paymentID, EventPaymentRefunded, PaymentRefunded{
		PaymentID:  paymentID,
		RefundID:   r.ID,
		Amount:     amount,
		Reason:     reason,
		RefundedAt: r.CreatedAt,
	})
	return r, nil
}

// GetByOrder returns the completed payment for an order, if any.
func (s *Service) GetByOrder(orderID string) (Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, ok := s.completed[orderID]
	if !ok {
		return Payment{}, false
	}
	return *s.payments[pid], true
}

// Get returns a payment by ID.
func (s *Service) Get(paymentID string) (Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return Payment{}, false
	}
	return *p, true
}

// Remaining returns the unrefunded balance of a payment.
func (s *Service) Remaining(paymentID string) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return money.Money{}, fmt.Errorf("payment %s: %w", paymentID, ErrPaymentNotFound)
	}
	return s.remainingLocked(p)
}

// Refunds returns the refunds issued against a payment.
func (s *Service) Refunds(paymentID string) []Refund {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Refund, len(s.refunds[paymentID]))
	copy(out, s.refunds[paymentID])
	return out
}

func (s *Service) remainingLocked(p *Payment) (money.Money, error) {
	remaining := p.Amount
	for _, r := range s.refunds[p.ID] {
		var err error
		remaining, err = remaining.Sub(r.Amount)
		if err != nil {
			return money.Money{}, err
		}
	}
	return remaining, nil
}

func (s *Service) append(ctx context.Context, paymentID, eventType string, data any) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Append(ctx, paymentID, AggregateType, eventType, data); err != nil {
		s.logger.Error("failed to journal payment event",
			zap.String("payment_id", paymentID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
