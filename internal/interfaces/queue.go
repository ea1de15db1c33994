package interfaces

import (
	"context"
	"time"

	"notifier/internal/models"
)

type DeadLetterJob struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Partition  int       `json:"partition"`
	Offset     int64     `json:"offset"`
	Payload    []byte    `json:"payload"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}

type DeadLetterQueue interface {
	Send(payload []byte, topic string, partition int, offset int64, reason string, originalError error) error
	Get(limit int) ([]DeadLetterJob, error)
	Retry(jobID string) error
}

type OrderEnqueuer interface {
	EnqueueOrder(ctx context.Context, order models.OrderSummary) error
}
