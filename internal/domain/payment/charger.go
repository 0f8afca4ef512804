package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/checkout-core/internal/money"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseBackoff = 200 * time.Millisecond
)

// Charger wraps a Gateway with the retry policy the core owes it: transient
// ProviderUnavailable failures are retried with exponential backoff, declines
// are returned immediately.
type Charger struct {
	gateway     Gateway
	maxAttempts int
	baseBackoff time.Duration
	logger      *zap.Logger
	retries     prometheus.Counter

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

type ChargerOption func(*Charger)

func WithMaxAttempts(n int) ChargerOption {
	return func(c *Charger) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBaseBackoff(d time.Duration) ChargerOption {
	return func(c *Charger) {
		if d > 0 {
			c.baseBackoff = d
		}
	}
}

// WithRetryCounter wires a metric incremented per retried attempt.
func WithRetryCounter(counter prometheus.Counter) ChargerOption {
	return func(c *Charger) {
		c.retries = counter
	}
}

func NewCharger(gateway Gateway, logger *zap.Logger, opts ...ChargerOption) *Charger {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Charger{
		gateway:     gateway,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBaseBackoff,
		logger:      logger,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Charger) Charge(ctx context.Context, orderID string, amount money.Money, method Method, idempotencyKey string) (string, error) {
	return c.do(ctx, "charge", func() (string, error) {
		return c.gateway.Charge(ctx, orderID, amount, method, idempotencyKey)
	})
}

func (c *Charger) Refund(ctx context.Context, transactionID string, amount money.Money, reason string) (string, error) {
	return c.do(ctx, "refund", func() (string, error) {
		return c.gateway.Refund(ctx, transactionID, amount, reason)
	})
}

func (c *Charger) do(ctx context.Context, op string, call func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff << (attempt - 1)
			if err := c.sleep(ctx, backoff); err != nil {
				return "", err
			}
			if c.retries != nil {
				c.retries.Inc()
			}
		}

		ref, err := call()
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, ErrProviderUnavailable) {
			return "", err
		}
		lastErr = err
		c.logger.Warn("payment provider unavailable, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxAttempts))
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", op, c.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
