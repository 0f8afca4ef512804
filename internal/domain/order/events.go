package order

import (
	"time"

	"github.com/example/checkout-core/internal/money"
)

const (
	EventOrderCreated      = "OrderCreated"
	EventOrderTransitioned = "OrderTransitioned"
	EventOrderFlagged      = "OrderFlaggedForReconciliation"
)

type OrderCreated struct {
	OrderID       string      `json:"order_id"`
	CustomerID    string      `json:"customer_id"`
	ReservationID string      `json:"reservation_id"`
	Items         []Item      `json:"items"`
	Total         money.Money `json:"total"`
	CreatedAt     time.Time   `json:"created_at"`
}

type OrderTransitioned struct {
	OrderID string    `json:"order_id"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	Actor   string    `json:"actor"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

type OrderFlagged struct {
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
}
