package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/checkout-core/internal/infrastructure/kafka"
	"github.com/google/uuid"
)

// MemoryJournal keeps events in memory and optionally publishes each one to
// Kafka. It is the default backend for local runs and tests.
type MemoryJournal struct {
	mu       sync.RWMutex
	events   map[string][]Event // aggregateID -> events
	producer *kafka.Producer
}

func NewMemoryJournal(producer *kafka.Producer) *MemoryJournal {
	return &MemoryJournal{
		events:   make(map[string][]Event),
		producer: producer,
	}
}

// Append stores an event and publishes it to Kafka when a producer is wired.
func (j *MemoryJournal) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       len(j.events[aggregateID]) + 1,
	}
	j.events[aggregateID] = append(j.events[aggregateID], event)
	j.mu.Unlock()

	if j.producer != nil {
		if err := j.producer.Publish(ctx, aggregateID, event); err != nil {
			return nil, err
		}
	}

	return &event, nil
}

// GetEvents returns all events for an aggregate.
func (j *MemoryJournal) GetEvents(aggregateID string) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.events[aggregateID]
}

// GetAllEvents returns every journal entry.
func (j *MemoryJournal) GetAllEvents() []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var all []Event
	for _, events := range j.events {
		all = append(all, events...)
	}
	return all
}
