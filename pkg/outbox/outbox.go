// Package outbox implements the durable half of at-least-once event
// delivery: a mutation writes its event into a Store in the same unit of
// work as the aggregate, and the Dispatcher drains pending records to the
// broker until each one is acknowledged. A record is only marked sent after
// an ack, so a crash or broker outage can delay an event but never lose it;
// consumers deduplicate by event_id.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrPublishTimeout means the broker did not acknowledge in time. The
	// outcome is unknown: the message may still have been written, so the
	// record stays pending and a duplicate delivery is possible.
	ErrPublishTimeout = errors.New("publish timeout")
	// ErrPublishFailure means the broker rejected the message or was
	// unreachable.
	ErrPublishFailure = errors.New("publish failure")
)

// Record is one undelivered event. ID is assigned by the Store and orders
// the drain; EventID is the broker-level deduplication key.
type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// Store persists outbox records. Implementations must keep FetchPending in
// insertion order so per-key event order survives the drain.
type Store interface {
	Insert(ctx context.Context, eventID, topic, key string, payload any) error
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
	Pending(ctx context.Context) (int, error)
}

// Publisher is the broker capability the dispatcher drains into. Publish is
// expected to be idempotent on the broker side when the same event id is
// retried; the partition key keeps per-order ordering.
type Publisher interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Publish(ctx context.Context, topic, key string, value []byte, timeout time.Duration) error
	HealthCheck(ctx context.Context) bool
}
