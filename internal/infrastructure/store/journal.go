package store

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one append-only journal entry: an inventory movement, a
// reservation or order transition, a payment outcome, or a notification
// event. The journal is the audit trail and the Kafka publication source;
// authoritative state lives in the domain services.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// Journal is an append-only event journal.
type Journal interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error)
	GetEvents(aggregateID string) []Event
	GetAllEvents() []Event
}
