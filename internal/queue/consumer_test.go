package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"notifier/internal/breaker"
	"notifier/internal/config"
	"notifier/internal/models"
)

// A mockBatcher is a mock implementation of OrderBatcher for testing
type mockBatcher struct {
	payloads [][]byte
	amounts  []float64
	err      error
}

func (m *mockBatcher) AddOrder(ctx context.Context, payload []byte, amount float64) (int64, float64, error) {
	if m.err != nil {
		return 0, 0, m.err
	}
	m.payloads = append(m.payloads, payload)
	m.amounts = append(m.amounts, amount)
	return int64(len(m.payloads)), 0, nil
}

func newTestConsumer(t *testing.T, batcher *mockBatcher) *Consumer {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.Disabled)
	executor := breaker.New(
		"test",
		config.CircuitBreakerConfig{Threshold: 100, Cooldown: config.Duration(time.Second)},
		config.RetryConfig{Attempts: 2, InitialDelay: config.Duration(time.Millisecond), MaxDelay: config.Duration(5 * time.Millisecond), MaxJitter: config.Duration(time.Millisecond)},
		&logger,
	)
	cfg := config.Config{
		Kafka:          config.KafkaConfig{Topic: "orders.batch", GroupID: "notifier", Listeners: "localhost:9092", Workers: 10},
		CircuitBreaker: config.CircuitBreakerConfig{Threshold: 3, Cooldown: config.Duration(time.Second)},
	}
	return NewConsumer(cfg, batcher, executor, &logger)
}

func batchJobMessage(t *testing.T, orderID string, amount float64) kafka.Message {
	t.Helper()
	job := models.BatchJob{
		Type: models.JobTypeBatchOrder,
		Order: models.OrderSummary{
			OrderID:      orderID,
			CustomerName: "Test Customer",
			Amount:       amount,
			DeliveryType: models.DeliveryCourier,
			PaidAt:       time.Now(),
		},
	}
	payload, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	return kafka.Message{Topic: "orders.batch", Value: payload}
}

func TestProcessJob_AccumulatesOrder(t *testing.T) {
	batcher := &mockBatcher{}
	c := newTestConsumer(t, batcher)

	err := c.processJob(context.Background(), batchJobMessage(t, "order-1", 250))
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	if len(batcher.amounts) != 1 || batcher.amounts[0] != 250 {
		t.Errorf("error: expected amount 250 accumulated, got %v", batcher.amounts)
	}
	var summary models.OrderSummary
	if err := json.Unmarshal(batcher.payloads[0], &summary); err != nil {
		t.Fatalf("error: %v", err)
	}
	if summary.OrderID != "order-1" {
		t.Errorf("error: wrong order id in payload: %s", summary.OrderID)
	}
}

func TestProcessJob_RejectsMalformedJSON(t *testing.T) {
	batcher := &mockBatcher{}
	c := newTestConsumer(t, batcher)

	err := c.processJob(context.Background(), kafka.Message{Value: []byte("{broken")})
	if err == nil {
		t.Fatalf("error: expected malformed job to be rejected")
	}
	if len(batcher.payloads) != 0 {
		t.Errorf("error: nothing should be accumulated for a malformed job")
	}
}

func TestProcessJob_RejectsUnknownJobType(t *testing.T) {
	batcher := &mockBatcher{}
	c := newTestConsumer(t, batcher)

	job, _ := json.Marshal(map[string]any{"type": "mystery", "order": map[string]any{"order_id": "o1"}})
	err := c.processJob(context.Background(), kafka.Message{Value: job})
	if err == nil {
		t.Fatalf("error: expected unknown job type to be rejected")
	}
}

func TestProcessJob_PropagatesStoreFailure(t *testing.T) {
	batcher := &mockBatcher{err: errors.New("store down")}
	c := newTestConsumer(t, batcher)

	err := c.processJob(context.Background(), batchJobMessage(t, "order-1", 10))
	if err == nil {
		t.Fatalf("error: expected store failure to propagate after retries")
	}
}

func TestDeadLetterQueue_SendAndGet(t *testing.T) {
	logger := zerolog.Nop()
	dlq := NewInMemoryDeadLetterQueue(&logger)

	err := dlq.Send([]byte("payload"), "orders.batch", 0, 42, "processing_error", errors.New("boom"))
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	jobs, err := dlq.Get(10)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("error: expected 1 dead letter job, got %d", len(jobs))
	}
	if jobs[0].Offset != 42 || jobs[0].Reason != "processing_error" {
		t.Errorf("error: wrong job recorded: %+v", jobs[0])
	}
	if dlq.Len() != 1 {
		t.Errorf("error: expected queue length 1, got %d", dlq.Len())
	}

	if err := dlq.Retry(jobs[0].ID); err != nil {
		t.Errorf("error: %v", err)
	}
	if err := dlq.Retry("missing"); err == nil {
		t.Errorf("error: expected retry of a missing job to fail")
	}

	dlq.Clear()
	if dlq.Len() != 0 {
		t.Errorf("error: expected queue cleared")
	}
}
