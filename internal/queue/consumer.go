package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"notifier/internal/breaker"
	"notifier/internal/config"
	"notifier/internal/interfaces"
	"notifier/internal/models"
)

// A Consumer reads batch jobs from the work queue and accumulates them into
// the pending batch with bounded concurrency
type Consumer struct {
	reader          *kafka.Reader
	config          config.KafkaConfig
	mu              sync.RWMutex
	running         bool
	batcher         interfaces.OrderBatcher
	executor        *breaker.Executor
	logger          *zerolog.Logger
	fetchBreaker    *gobreaker.CircuitBreaker
	deadLetterQueue interfaces.DeadLetterQueue

	// semaphore bounding in-flight jobs; delivery is at-least-once and a
	// redelivered job may add the same order twice, which is safe because
	// the poller deduplicates before enqueueing
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewConsumer creates a work-queue consumer over the atomic batch store
func NewConsumer(
	cfg config.Config, batcher interfaces.OrderBatcher, executor *breaker.Executor, logger *zerolog.Logger,
) *Consumer {
	fetchBreaker := gobreaker.NewCircuitBreaker(
		gobreaker.Settings{
			Name:        "queue-consumer",
			MaxRequests: 1,
			Timeout:     cfg.CircuitBreaker.Cooldown.Std(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreaker.Threshold)
			},
		},
	)

	workers := cfg.Kafka.Workers
	if workers <= 0 {
		workers = 10
	}

	return &Consumer{
		config:          cfg.Kafka,
		batcher:         batcher,
		executor:        executor,
		logger:          logger,
		fetchBreaker:    fetchBreaker,
		deadLetterQueue: NewInMemoryDeadLetterQueue(logger),
		slots:           make(chan struct{}, workers),
	}
}

// Start begins consuming jobs in the background
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("consumer is already running")
	}

	brokers := strings.Split(c.config.Listeners, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	c.reader = kafka.NewReader(
		kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       c.config.Topic,
			GroupID:     c.config.GroupID,
			StartOffset: kafka.LastOffset,
			MinBytes:    10e3,
			MaxBytes:    10e6,
			MaxWait:     time.Second,
			ErrorLogger: kafka.LoggerFunc(
				func(msg string, args ...interface{}) {
					c.logger.Error().
						Str("kafka_error", fmt.Sprintf(msg, args...)).
						Msg("kafka reader error")
				},
			),
		},
	)

	if strings.TrimSpace(c.config.GroupID) == "" {
		c.logger.Warn().Msg("Kafka GroupID is empty — offsets will NOT be committed. Set GroupID to enable consumer-group offset commits.")
	}

	c.running = true

	go c.consume(ctx)

	return nil
}

// Stop shuts the consumer down and waits for in-flight jobs
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	if c.reader != nil {
		if err := c.reader.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Error closing Kafka reader")
			return fmt.Errorf("failed to close Kafka reader: %w", err)
		}
		c.reader = nil
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	for {
		c.mu.RLock()
		running := c.running
		reader := c.reader
		c.mu.RUnlock()

		if !running || reader == nil {
			break
		}

		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result, err := c.fetchBreaker.Execute(
			func() (any, error) {
				defer cancel()
				return reader.FetchMessage(fetchCtx)
			},
		)

		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error().Err(err).Msg("Error fetching work-queue job")

			retryErr := retry.Do(
				func() error {
					return nil
				},
				retry.Attempts(3),
				retry.Delay(1*time.Second),
				retry.DelayType(retry.BackOffDelay),
				retry.MaxDelay(30*time.Second),
				retry.OnRetry(
					func(n uint, err error) {
						c.logger.Warn().
							Uint("attempt", n+1).
							Msg("Retrying Kafka connection")
					},
				),
				retry.Context(ctx),
			)
			if retryErr != nil {
				c.logger.Error().Err(retryErr).Msg("Failed to recover Kafka connection")
				break
			}
			continue
		}
		message := result.(kafka.Message)

		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		c.wg.Add(1)
		go func(message kafka.Message) {
			defer c.wg.Done()
			defer func() { <-c.slots }()

			if err := c.processJob(ctx, message); err != nil {
				c.logger.Error().
					Err(err).
					Str("topic", message.Topic).
					Int("partition", message.Partition).
					Int64("offset", message.Offset).
					Msg("Error processing job, sending to dead letter queue")

				dlqErr := c.deadLetterQueue.Send(
					message.Value, message.Topic, message.Partition, message.Offset,
					"processing_error", err,
				)
				if dlqErr != nil {
					c.logger.Error().Err(dlqErr).Msg("Failed to send job to dead letter queue")
				}
			}

			c.commit(ctx, message)
		}(message)
	}
}

// processJob decodes, validates and accumulates one batch job
func (c *Consumer) processJob(ctx context.Context, message kafka.Message) error {
	var job models.BatchJob
	if err := json.Unmarshal(message.Value, &job); err != nil {
		c.logger.Error().
			Err(err).
			Int64("offset", message.Offset).
			Str("raw_message", string(message.Value)).
			Msg("Failed to unmarshal batch job JSON")
		return fmt.Errorf("failed to unmarshal batch job: %w", err)
	}

	if err := job.Validate(); err != nil {
		c.logger.Error().
			Err(err).
			Str("order_id", job.Order.OrderID).
			Int64("offset", message.Offset).
			Msg("Batch job validation failed")
		return fmt.Errorf("batch job validation failed: %w", err)
	}

	payload, err := json.Marshal(job.Order)
	if err != nil {
		return fmt.Errorf("failed to serialize order summary: %w", err)
	}

	processCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err = c.executor.Execute(
		processCtx, func(ctx context.Context) error {
			length, total, addErr := c.batcher.AddOrder(ctx, payload, job.Order.Amount)
			if addErr != nil {
				return addErr
			}
			c.logger.Debug().
				Str("order_id", job.Order.OrderID).
				Int64("batch_length", length).
				Float64("batch_total", total).
				Msg("Accumulated order into pending batch")
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("failed to accumulate order %s: %w", job.Order.OrderID, err)
	}

	return nil
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if strings.TrimSpace(c.config.GroupID) == "" {
		return
	}

	c.mu.RLock()
	reader := c.reader
	c.mu.RUnlock()
	if reader == nil {
		return
	}

	commitErr := retry.Do(
		func() error {
			return reader.CommitMessages(ctx, message)
		},
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
	if commitErr != nil {
		c.logger.Error().
			Err(commitErr).
			Str("topic", message.Topic).
			Int("partition", message.Partition).
			Int64("offset", message.Offset).
			Msg("Failed to commit job after retries")
	}
}

// GetDeadLetterQueue exposes the DLQ for inspection
func (c *Consumer) GetDeadLetterQueue() interfaces.DeadLetterQueue {
	return c.deadLetterQueue
}
