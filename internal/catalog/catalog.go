package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/checkout-core/internal/money"
)

var ErrProductNotFound = errors.New("product not found")

// Snapshot is what checkout captures from the catalog at order-creation
// time. Prices are never re-read afterwards.
type Snapshot struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unit_price"`
}

// Catalog is the external catalog/pricing collaborator, specified only at
// this boundary.
type Catalog interface {
	PriceOf(ctx context.Context, productID string) (money.Money, error)
	SnapshotOf(ctx context.Context, productID string) (Snapshot, error)
}

// Static is a map-backed Catalog for local runs and tests.
type Static struct {
	mu       sync.RWMutex
	products map[string]Snapshot
}

func NewStatic() *Static {
	return &Static{products: make(map[string]Snapshot)}
}

func (s *Static) Put(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[snap.ProductID] = snap
}

func (s *Static) PriceOf(ctx context.Context, productID string) (money.Money, error) {
	snap, err := s.SnapshotOf(ctx, productID)
	if err != nil {
		return money.Money{}, err
	}
	return snap.UnitPrice, nil
}

func (s *Static) SnapshotOf(ctx context.Context, productID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.products[productID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%s: %w", productID, ErrProductNotFound)
	}
	return snap, nil
}
