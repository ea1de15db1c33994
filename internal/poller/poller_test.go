package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"notifier/internal/models"
)

// A mockOrderRepo is a mock implementation of OrderRepository for testing
type mockOrderRepo struct {
	rows []models.PaidOrder
	err  error
}

func (m *mockOrderRepo) PaidOrdersSince(ctx context.Context, since time.Time) ([]models.PaidOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	var rows []models.PaidOrder
	for _, row := range m.rows {
		if !row.UpdatedAt.Before(since) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// A mockDedupStore is a mock implementation of DedupStore for testing
type mockDedupStore struct {
	processed  map[string]bool
	checkpoint time.Time
	saved      []time.Time
}

func newMockDedupStore() *mockDedupStore {
	return &mockDedupStore{processed: make(map[string]bool)}
}

func (m *mockDedupStore) FilterProcessed(ctx context.Context, orderIDs []string) ([]string, error) {
	var fresh []string
	for _, id := range orderIDs {
		if !m.processed[id] {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

func (m *mockDedupStore) MarkProcessed(ctx context.Context, orderIDs []string) error {
	for _, id := range orderIDs {
		m.processed[id] = true
	}
	return nil
}

func (m *mockDedupStore) Checkpoint(ctx context.Context) (time.Time, error) {
	return m.checkpoint, nil
}

func (m *mockDedupStore) SaveCheckpoint(ctx context.Context, at time.Time) error {
	m.checkpoint = at
	m.saved = append(m.saved, at)
	return nil
}

// A mockEnqueuer records enqueued orders and can fail on demand
type mockEnqueuer struct {
	queued  []models.OrderSummary
	failIDs map[string]bool
}

func (m *mockEnqueuer) EnqueueOrder(ctx context.Context, order models.OrderSummary) error {
	if m.failIDs[order.OrderID] {
		return errors.New("queue down")
	}
	m.queued = append(m.queued, order)
	return nil
}

func paidOrder(n int, updatedAt time.Time) models.PaidOrder {
	return models.PaidOrder{
		ID:            fmt.Sprintf("0000000%d-1111-4222-8333-444444444444", n),
		CustomerID:    "7c38e05e-8a0d-4cf5-a317-78cf57c3ab61",
		CustomerName:  "Test Customer",
		Amount:        float64(100 * n),
		DeliveryType:  models.DeliveryCourier,
		PaymentStatus: "paid",
		CreatedAt:     updatedAt.Add(-time.Minute),
		UpdatedAt:     updatedAt,
	}
}

func newTestPoller(repo *mockOrderRepo, dedup *mockDedupStore, queue *mockEnqueuer) *Poller {
	logger := zerolog.Nop()
	return New(repo, dedup, queue, time.Minute, &logger)
}

func TestTick_QueuesNewOrdersAndMarksProcessed(t *testing.T) {
	now := time.Now().Add(-time.Minute)
	repo := &mockOrderRepo{rows: []models.PaidOrder{paidOrder(1, now), paidOrder(2, now.Add(time.Second))}}
	dedup := newMockDedupStore()
	queue := &mockEnqueuer{}
	p := newTestPoller(repo, dedup, queue)
	p.checkpoint = now.Add(-time.Hour)

	p.tick(context.Background())

	if len(queue.queued) != 2 {
		t.Fatalf("error: expected 2 queued orders, got %d", len(queue.queued))
	}
	for _, order := range queue.queued {
		if !dedup.processed[order.OrderID] {
			t.Errorf("error: queued order %s must be marked processed", order.OrderID)
		}
	}
	if !p.checkpoint.Equal(now.Add(time.Second)) {
		t.Errorf("error: checkpoint should advance to the last validated row")
	}
}

func TestTick_DedupAcrossOverlappingTicks(t *testing.T) {
	now := time.Now().Add(-time.Minute)
	repo := &mockOrderRepo{rows: []models.PaidOrder{paidOrder(1, now)}}
	dedup := newMockDedupStore()
	queue := &mockEnqueuer{}
	p := newTestPoller(repo, dedup, queue)
	p.checkpoint = now.Add(-time.Hour)

	// same row delivered across two ticks via the >= checkpoint overlap
	p.tick(context.Background())
	p.tick(context.Background())

	if len(queue.queued) != 1 {
		t.Errorf("error: expected the order enqueued at most once, got %d", len(queue.queued))
	}
}

func TestTick_EmptyResultLeavesCheckpointUnchanged(t *testing.T) {
	repo := &mockOrderRepo{}
	dedup := newMockDedupStore()
	queue := &mockEnqueuer{}
	p := newTestPoller(repo, dedup, queue)
	checkpoint := time.Now().Add(-time.Hour)
	p.checkpoint = checkpoint

	p.tick(context.Background())

	if !p.checkpoint.Equal(checkpoint) {
		t.Errorf("error: checkpoint must not move on an empty tick")
	}
	if len(dedup.saved) != 0 {
		t.Errorf("error: nothing should be persisted on an empty tick")
	}
}

func TestTick_AllDuplicatesStillAdvanceCheckpoint(t *testing.T) {
	now := time.Now().Add(-time.Minute)
	order := paidOrder(1, now)
	repo := &mockOrderRepo{rows: []models.PaidOrder{order}}
	dedup := newMockDedupStore()
	dedup.processed[order.ID] = true
	queue := &mockEnqueuer{}
	p := newTestPoller(repo, dedup, queue)
	p.checkpoint = now.Add(-time.Hour)

	p.tick(context.Background())

	if len(queue.queued) != 0 {
		t.Errorf("error: duplicate orders must not be requeued")
	}
	if !p.checkpoint.Equal(now) {
		t.Errorf("error: checkpoint must advance even when every row is a duplicate")
	}
}

func TestTick_InvalidRowSkippedOthersSurvive(t *testing.T) {
	now := time.Now().Add(-time.Minute)
	bad := paidOrder(1, now)
	bad.ID = "not-a-uuid"
	good := paidOrder(2, now.Add(time.Second))
	repo := &mockOrderRepo{rows: []models.PaidOrder{bad, good}}
	dedup := newMockDedupStore()
	queue := &mockEnqueuer{}
	p := newTestPoller(repo, dedup, queue)
	p.checkpoint = now.Add(-time.Hour)

	p.tick(context.Background())

	if len(queue.queued) != 1 || queue.queued[0].OrderID != good.ID {
		t.Errorf("error: expected only the valid order queued, got %v", queue.queued)
	}
}

func TestTick_EnqueueFailureDoesNotMarkProcessed(t *testing.T) {
	now := time.Now().Add(-time.Minute)
	first := paidOrder(1, now)
	second := paidOrder(2, now.Add(time.Second))
	repo := &mockOrderRepo{rows: []models.PaidOrder{first, second}}
	dedup := newMockDedupStore()
	queue := &mockEnqueuer{failIDs: map[string]bool{first.ID: true}}
	p := newTestPoller(repo, dedup, queue)
	p.checkpoint = now.Add(-time.Hour)

	p.tick(context.Background())

	// the failed order stays unmarked so the next tick retries it
	if dedup.processed[first.ID] {
		t.Errorf("error: a failed enqueue must not be marked processed")
	}
	if !dedup.processed[second.ID] {
		t.Errorf("error: the later order must still be queued and marked")
	}
	if len(queue.queued) != 1 {
		t.Errorf("error: expected 1 queued order, got %d", len(queue.queued))
	}
}

func TestRestoreCheckpoint_DefaultsToNow(t *testing.T) {
	repo := &mockOrderRepo{}
	dedup := newMockDedupStore()
	queue := &mockEnqueuer{}
	p := newTestPoller(repo, dedup, queue)

	before := time.Now()
	p.restoreCheckpoint(context.Background())

	if p.checkpoint.Before(before) {
		t.Errorf("error: first run must start from now, not reprocess history")
	}
}
