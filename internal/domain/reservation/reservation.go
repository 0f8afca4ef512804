package reservation

import (
	"errors"
	"time"
)

const AggregateType = "Reservation"

var (
	ErrNotFound        = errors.New("reservation not found")
	ErrNotActive       = errors.New("reservation is not active")
	ErrNotConfirmed    = errors.New("reservation is not confirmed")
	ErrNoLines         = errors.New("reservation requires at least one line")
	ErrInvalidQuantity = errors.New("line quantity must be positive")
	ErrOrderAttached   = errors.New("reservation already references an order")
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Line is one (product, warehouse, quantity) entry of a hold.
type Line struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
}

// Reservation is a time-bounded multi-line inventory hold. OrderID stays
// empty until the checkout creates the order.
type Reservation struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	OrderID    string    `json:"order_id,omitempty"`
	Lines      []Line    `json:"lines"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (r Reservation) clone() Reservation {
	out := r
	out.Lines = make([]Line, len(r.Lines))
	copy(out.Lines, r.Lines)
	return out
}
