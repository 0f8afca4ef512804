package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/checkout-core/internal/money"
	"github.com/google/uuid"
)

// SimulatedProvider is an in-memory Gateway honoring the idempotency
// contract. It backs local runs and tests; the knobs script failure modes.
type SimulatedProvider struct {
	mu      sync.Mutex
	charges map[string]string // idempotency key -> transaction ID

	unavailable   int    // remaining calls to fail with ErrProviderUnavailable
	declineReason string // when set, every charge is declined
}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{charges: make(map[string]string)}
}

// FailNext makes the next n calls return ErrProviderUnavailable.
func (p *SimulatedProvider) FailNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = n
}

// DeclineWith declines every subsequent charge with the given reason; an
// empty reason re-enables approvals.
func (p *SimulatedProvider) DeclineWith(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.declineReason = reason
}

func (p *SimulatedProvider) Charge(ctx context.Context, orderID string, amount money.Money, method Method, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unavailable > 0 {
		p.unavailable--
		return "", ErrProviderUnavailable
	}
	if p.declineReason != "" {
		return "", fmt.Errorf("%w: %s", ErrDeclined, p.declineReason)
	}

	// Same key, same charge: a retried request gets the original
	// transaction back and no second charge happens.
	if tx, ok := p.charges[idempotencyKey]; ok {
		return tx, nil
	}
	tx := "txn-" + uuid.New().String()
	p.charges[idempotencyKey] = tx
	return tx, nil
}

func (p *SimulatedProvider) Refund(ctx context.Context, transactionID string, amount money.Money, reason string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unavailable > 0 {
		p.unavailable--
		return "", ErrProviderUnavailable
	}
	return "rfn-" + uuid.New().String(), nil
}

// ChargeCount reports distinct charges made, for asserting idempotency.
func (p *SimulatedProvider) ChargeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.charges)
}
