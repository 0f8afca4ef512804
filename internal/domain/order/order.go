package order

import (
	"errors"
	"time"

	"github.com/example/checkout-core/internal/money"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotOwner          = errors.New("order belongs to a different customer")
)

// validTransitions is the fixed transition table: forward along the happy
// path, cancel allowed up to processing, refund only once paid. Shipped and
// delivered orders cannot be cancelled; they go through the refund flow.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {}, // terminal
	StatusCancelled:  {}, // terminal
	StatusRefunded:   {}, // terminal
}

// CanTransitionTo checks the transition table.
func (s Status) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Item is an immutable snapshot of a product at order-creation time. Name
// and price are captured from the catalog once and never re-read.
type Item struct {
	ProductID   string      `json:"product_id"`
	WarehouseID string      `json:"warehouse_id"`
	Name        string      `json:"name"`
	UnitPrice   money.Money `json:"unit_price"`
	Quantity    int         `json:"quantity"`
}

func (i Item) Subtotal() money.Money {
	return i.UnitPrice.MulQty(i.Quantity)
}

// Order is a financial record: items and total are immutable once created,
// only status and timestamps mutate.
type Order struct {
	ID            string      `json:"id"`
	CustomerID    string      `json:"customer_id"`
	Items         []Item      `json:"items"`
	Total         money.Money `json:"total"`
	Status        Status      `json:"status"`
	ReservationID string      `json:"reservation_id"`
	PaymentID     string      `json:"payment_id,omitempty"`

	// NeedsReconciliation marks an order whose saga broke an invariant
	// (e.g. charge completed but confirm failed); the recovery sweep and
	// operators pick these up.
	NeedsReconciliation bool   `json:"needs_reconciliation,omitempty"`
	ReconcileReason     string `json:"reconcile_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o Order) clone() Order {
	out := o
	out.Items = make([]Item, len(o.Items))
	copy(out.Items, o.Items)
	return out
}

// TransitionRecord is one append-only audit entry for a status change.
type TransitionRecord struct {
	OrderID string    `json:"order_id"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	Actor   string    `json:"actor"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}
