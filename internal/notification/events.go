package notification

import "time"

const AggregateType = "Notification"

const (
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderCancelled = "OrderCancelled"
	EventPaymentFailed  = "PaymentFailed"
)

type OrderConfirmed struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	At         time.Time `json:"at"`
}

type OrderCancelled struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

type PaymentFailed struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}
