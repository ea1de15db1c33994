package interfaces

import (
	"context"
	"time"

	"notifier/internal/models"
)

// A Publisher fans a payload out on one pub/sub channel of the shared store
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// An OrderBatcher accumulates serialized order summaries into the pending batch
type OrderBatcher interface {
	AddOrder(ctx context.Context, payload []byte, amount float64) (int64, float64, error)
}

// A BatchFlusher drains the pending batch and publishes it atomically
type BatchFlusher interface {
	FlushAndPublish(ctx context.Context, channel string, maxOrdersToSend int) (*models.FlushResult, error)
}

// A NotificationStore holds the active-orders hash and the outbox list
type NotificationStore interface {
	Publisher
	SetActive(ctx context.Context, orderID string, payload []byte) error
	DeleteActive(ctx context.Context, orderID string) error
	ActiveOrders(ctx context.Context) (map[string]string, error)
	EnqueueOutbox(ctx context.Context, raw []byte) error
	PopOutbox(ctx context.Context) ([]byte, error)
	PushBackOutbox(ctx context.Context, raw []byte) error
}

// A DedupStore tracks which order ids were already queued plus the poll checkpoint
type DedupStore interface {
	FilterProcessed(ctx context.Context, orderIDs []string) ([]string, error)
	MarkProcessed(ctx context.Context, orderIDs []string) error
	Checkpoint(ctx context.Context) (time.Time, error)
	SaveCheckpoint(ctx context.Context, at time.Time) error
}
