package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournal_AppendAssignsVersionPerAggregate(t *testing.T) {
	journal := NewMemoryJournal(nil)
	ctx := context.Background()

	first, err := journal.Append(ctx, "order-1", "Order", "OrderCreated", map[string]string{"id": "order-1"})
	require.NoError(t, err)
	second, err := journal.Append(ctx, "order-1", "Order", "OrderTransitioned", map[string]string{"to": "confirmed"})
	require.NoError(t, err)
	other, err := journal.Append(ctx, "order-2", "Order", "OrderCreated", map[string]string{"id": "order-2"})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 1, other.Version)
	assert.NotEmpty(t, first.ID)
	assert.NotZero(t, first.Timestamp)
}

func TestMemoryJournal_GetEvents(t *testing.T) {
	journal := NewMemoryJournal(nil)
	ctx := context.Background()

	_, err := journal.Append(ctx, "order-1", "Order", "OrderCreated", nil)
	require.NoError(t, err)
	_, err = journal.Append(ctx, "order-1", "Order", "OrderTransitioned", nil)
	require.NoError(t, err)

	events := journal.GetEvents("order-1")
	require.Len(t, events, 2)
	assert.Equal(t, "OrderCreated", events[0].EventType)
	assert.Equal(t, "OrderTransitioned", events[1].EventType)

	assert.Empty(t, journal.GetEvents("ghost"))
	assert.Len(t, journal.GetAllEvents(), 2)
}

func TestMemoryJournal_UnmarshalableData(t *testing.T) {
	journal := NewMemoryJournal(nil)

	_, err := journal.Append(context.Background(), "order-1", "Order", "Bad", make(chan int))

	assert.Error(t, err)
	assert.Empty(t, journal.GetEvents("order-1"))
}
