// Package queue implements the batching work queue between the order poller
// and the worker that accumulates pending batches
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"notifier/internal/config"
	"notifier/internal/models"
)

// A Producer enqueues batch jobs for asynchronous processing
type Producer struct {
	writer *kafka.Writer
	logger *zerolog.Logger
}

// NewProducer creates a producer for the batching topic
func NewProducer(cfg config.KafkaConfig, logger *zerolog.Logger) *Producer {
	brokers := strings.Split(cfg.Listeners, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Producer{writer: writer, logger: logger}
}

// EnqueueOrder queues one paid order for batching, keyed by order id so
// retries of the same order land on the same partition
func (p *Producer) EnqueueOrder(ctx context.Context, order models.OrderSummary) error {
	job := models.BatchJob{Type: models.JobTypeBatchOrder, Order: order}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to serialize batch job: %w", err)
	}

	err = p.writer.WriteMessages(
		ctx, kafka.Message{
			Key:   []byte(order.OrderID),
			Value: payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue order %s: %w", order.OrderID, err)
	}

	return nil
}

// Close closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
