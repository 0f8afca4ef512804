package payment

import (
	"context"
	"errors"

	"github.com/example/checkout-core/internal/money"
)

var (
	// ErrProviderUnavailable is transient: the charger retries it with
	// backoff up to a bounded attempt count.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrDeclined is terminal for the attempt and never retried
	// automatically. Wrap it with the decline reason.
	ErrDeclined = errors.New("payment declined")
)

// Gateway is the external payment provider contract. Presenting the same
// idempotency key twice must never cause two charges.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amount money.Money, method Method, idempotencyKey string) (transactionID string, err error)
	Refund(ctx context.Context, transactionID string, amount money.Money, reason string) (refundRef string, err error)
}

// IdempotencyKey derives the charge key deterministically from the order, so
// a retried checkout after a timeout can never double-charge.
func IdempotencyKey(orderID string) string {
	return "charge-" + orderID
}
