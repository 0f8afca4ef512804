package payment

import (
	"context"
	"testing"
	"time"

	"github.com/example/checkout-core/internal/clock"
	"github.com/example/checkout-core/internal/infrastructure/store/mocks"
	"github.com/example/checkout-core/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaymentService() (*Service, *SimulatedProvider, *mocks.MockJournal) {
	provider := NewSimulatedProvider()
	charger := NewCharger(provider, nil, WithBaseBackoff(time.Millisecond))
	journal := mocks.NewMockJournal()
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(charger, journal, clk, nil), provider, journal
}

// ============================================
// Charge Tests
// ============================================

func TestService_Charge_Success(t *testing.T) {
	service, provider, journal := newTestPaymentService()
	ctx := context.Background()

	p, err := service.Charge(ctx, "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.NotEmpty(t, p.ProviderRef)
	assert.Equal(t, IdempotencyKey("order-1"), p.IdempotencyKey)
	assert.Equal(t, 1, provider.ChargeCount())
	assert.Len(t, journal.CallsOfType(EventPaymentCompleted), 1)
}

func TestService_Charge_SecondCallReturnsExistingPayment(t *testing.T) {
	service, provider, _ := newTestPaymentService()
	ctx := context.Background()

	first, err := service.Charge(ctx, "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)
	require.NoError(t, err)
	second, err := service.Charge(ctx, "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ProviderRef, second.ProviderRef)
	assert.Equal(t, 1, provider.ChargeCount())
}

func TestService_Charge_Declined(t *testing.T) {
	service, provider, journal := newTestPaymentService()
	provider.DeclineWith("card expired")
	ctx := context.Background()

	p, err := service.Charge(ctx, "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)

	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, StatusFailed, p.Status)
	assert.Contains(t, p.FailureReason, "card expired")
	assert.Len(t, journal.CallsOfType(EventPaymentFailed), 1)
}

func TestService_Charge_RecoversAfterTransientFailure(t *testing.T) {
	service, provider, _ := newTestPaymentService()
	provider.FailNext(2)
	ctx := context.Background()

	p, err := service.Charge(ctx, "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
}

func TestService_Charge_ProviderExhausted(t *testing.T) {
	service, provider, _ := newTestPaymentService()
	provider.FailNext(10)
	ctx := context.Background()

	p, err := service.Charge(ctx, "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, StatusFailed, p.Status)

	// A failed attempt does not block a later retry of the same order.
	provider.FailNext(0)
	retry, err := service.Charge(ctx, "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, retry.Status)
	assert.Equal(t, 1, provider.ChargeCount())
}

// ============================================
// Refund Tests
// ============================================

func chargedPayment(t *testing.T, service *Service) Payment {
	t.Helper()
	p, err := service.Charge(context.Background(), "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)
	require.NoError(t, err)
	return p
}

func TestService_Refund_Full(t *testing.T) {
	service, _, journal := newTestPaymentService()
	p := chargedPayment(t, service)

	r, err := service.Refund(context.Background(), p.ID, money.New(4500, "USD"), "order cancelled")

	require.NoError(t, err)
	assert.Equal(t, int64(4500), r.Amount.Cents)
	assert.NotEmpty(t, r.ProviderRef)

	got, _ := service.Get(p.ID)
	assert.Equal(t, StatusRefunded, got.Status)

	remaining, err := service.Remaining(p.ID)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
	assert.Len(t, journal.CallsOfType(EventPaymentRefunded), 1)
}

func TestService_Refund_PartialThenFull(t *testing.T) {
	service, _, _ := newTestPaymentService()
	p := chargedPayment(t, service)
	ctx := context.Background()

	_, err := service.Refund(ctx, p.ID, money.New(1500, "USD"), "one item returned")
	require.NoError(t, err)

	got, _ := service.Get(p.ID)
	assert.Equal(t, StatusPartiallyRefunded, got.Status)
	remaining, _ := service.Remaining(p.ID)
	assert.Equal(t, int64(3000), remaining.Cents)

	_, err = service.Refund(ctx, p.ID, money.New(3000, "USD"), "rest returned")
	require.NoError(t, err)

	got, _ = service.Get(p.ID)
	assert.Equal(t, StatusRefunded, got.Status)
	assert.Len(t, service.Refunds(p.ID), 2)
}

func TestService_Refund_ExceedsBalance(t *testing.T) {
	service, _, _ := newTestPaymentService()
	p := chargedPayment(t, service)

	_, err := service.Refund(context.Background(), p.ID, money.New(5000, "USD"), "too much")

	assert.ErrorIs(t, err, ErrRefundExceedsBalance)
}

func TestService_Refund_CumulativeExceedsBalance(t *testing.T) {
	service, _, _ := newTestPaymentService()
	p := chargedPayment(t, service)
	ctx := context.Background()

	_, err := service.Refund(ctx, p.ID, money.New(3000, "USD"), "first")
	require.NoError(t, err)
	_, err = service.Refund(ctx, p.ID, money.New(3000, "USD"), "second")

	assert.ErrorIs(t, err, ErrRefundExceedsBalance)
}

func TestService_Refund_FailedPaymentNotRefundable(t *testing.T) {
	service, provider, _ := newTestPaymentService()
	provider.DeclineWith("no funds")
	p, _ := service.Charge(context.Background(), "order-1", "cust-1", money.New(4500, "USD"), MethodCreditCard)

	_, err := service.Refund(context.Background(), p.ID, money.New(100, "USD"), "oops")

	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestService_Refund_InvalidAmount(t *testing.T) {
	service, _, _ := newTestPaymentService()
	p := chargedPayment(t, service)

	_, err := service.Refund(context.Background(), p.ID, money.New(0, "USD"), "nothing")

	assert.ErrorIs(t, err, ErrInvalidRefundAmount)
}

func TestService_GetByOrder(t *testing.T) {
	service, _, _ := newTestPaymentService()
	p := chargedPayment(t, service)

	got, ok := service.GetByOrder("order-1")
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)

	_, ok = service.GetByOrder("ghost")
	assert.False(t, ok)
}
