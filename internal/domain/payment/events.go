package payment

import (
	"time"

	"github.com/example/checkout-core/internal/money"
)

const (
	EventPaymentCompleted = "PaymentCompleted"
	EventPaymentFailed    = "PaymentFailed"
	EventPaymentRefunded  = "PaymentRefunded"
)

type PaymentCompleted struct {
	PaymentID     string      `json:"payment_id"`
	OrderID       string      `json:"order_id"`
	Amount        money.Money `json:"amount"`
	TransactionID string      `json:"transaction_id"`
	CompletedAt   time.Time   `json:"completed_at"`
}

type PaymentFailed struct {
	PaymentID string      `json:"payment_id"`
	OrderID   string      `json:"order_id"`
	Amount    money.Money `json:"amount"`
	Reason    string      `json:"reason"`
	FailedAt  time.Time   `json:"failed_at"`
}

type PaymentRefunded struct {
	PaymentID  string      `json:"payment_id"`
	RefundID   string      `json:"refund_id"`
	Amount     money.Money `json:"amount"`
	Reason     string      `json:"reason"`
	RefundedAt time.Time   `json:"refunded_at"`
}
