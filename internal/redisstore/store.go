package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"notifier/internal/config"
)

// Keys names every key the pipeline owns in the shared store
type Keys struct {
	Pending      string
	PendingTotal string
	PendingLast  string
	Active       string
	Outbox       string
	Processed    string
	Checkpoint   string
}

// DefaultKeys returns the key layout used in production
func DefaultKeys() Keys {
	return Keys{
		Pending:      "orders:pending",
		PendingTotal: "orders:pending:total",
		PendingLast:  "orders:pending:last",
		Active:       "orders:active",
		Outbox:       "orders:outbox",
		Processed:    "orders:processed",
		Checkpoint:   "orders:poll:checkpoint",
	}
}

// A Store wraps the Redis client with the pipeline's key layout and the
// pending-batch scripts
type Store struct {
	client        *redis.Client
	keys          Keys
	maxListLen    int
	pendingExpiry time.Duration
	processedTTL  time.Duration
}

// New creates a store over an existing client with the provided batch and
// poller settings
func New(client *redis.Client, keys Keys, cfg *config.Config) *Store {
	return &Store{
		client:        client,
		keys:          keys,
		maxListLen:    cfg.Batch.MaxListLen,
		pendingExpiry: cfg.Batch.PendingExpiry.Std(),
		processedTTL:  cfg.Poller.ProcessedTTL.Std(),
	}
}

// Publish sends a payload on a pub/sub channel
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	return nil
}

// SetActive writes one notification into the active-orders hash
func (s *Store) SetActive(ctx context.Context, orderID string, payload []byte) error {
	if err := s.client.HSet(ctx, s.keys.Active, orderID, payload).Err(); err != nil {
		return fmt.Errorf("failed to set active order %s: %w", orderID, err)
	}
	return nil
}

// DeleteActive removes one notification from the active-orders hash
func (s *Store) DeleteActive(ctx context.Context, orderID string) error {
	if err := s.client.HDel(ctx, s.keys.Active, orderID).Err(); err != nil {
		return fmt.Errorf("failed to delete active order %s: %w", orderID, err)
	}
	return nil
}

// ActiveOrders reads the whole active-orders hash
func (s *Store) ActiveOrders(ctx context.Context) (map[string]string, error) {
	entries, err := s.client.HGetAll(ctx, s.keys.Active).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read active orders: %w", err)
	}
	return entries, nil
}

// EnqueueOutbox appends a deferred side effect to the tail of the outbox
func (s *Store) EnqueueOutbox(ctx context.Context, raw []byte) error {
	if err := s.client.RPush(ctx, s.keys.Outbox, raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	return nil
}

// PopOutbox removes and returns the head of the outbox; nil when empty
func (s *Store) PopOutbox(ctx context.Context) ([]byte, error) {
	raw, err := s.client.LPop(ctx, s.keys.Outbox).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop outbox entry: %w", err)
	}
	return raw, nil
}

// PushBackOutbox returns a popped entry to the head of the outbox so replay
// order is preserved
func (s *Store) PushBackOutbox(ctx context.Context, raw []byte) error {
	if err := s.client.LPush(ctx, s.keys.Outbox, raw).Err(); err != nil {
		return fmt.Errorf("failed to push back outbox entry: %w", err)
	}
	return nil
}

// OutboxLen reports the number of entries awaiting replay
func (s *Store) OutboxLen(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.keys.Outbox).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox length: %w", err)
	}
	return n, nil
}

// FilterProcessed returns the subset of orderIDs not yet in the processed set,
// in their original order, using one bulk membership check
func (s *Store) FilterProcessed(ctx context.Context, orderIDs []string) ([]string, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	members := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		members[i] = id
	}

	seen, err := s.client.SMIsMember(ctx, s.keys.Processed, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check processed orders: %w", err)
	}

	fresh := make([]string, 0, len(orderIDs))
	for i, id := range orderIDs {
		if !seen[i] {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// MarkProcessed records queued order ids and refreshes the retention window.
// The whole set expires together; refreshing on every add keeps each member
// at least the configured TTL.
func (s *Store) MarkProcessed(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		members[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keys.Processed, members...)
	pipe.Expire(ctx, s.keys.Processed, s.processedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark orders processed: %w", err)
	}
	return nil
}

// Checkpoint reads the persisted poll checkpoint; the zero time means no
// checkpoint has been saved yet
func (s *Store) Checkpoint(ctx context.Context) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.keys.Checkpoint).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read poll checkpoint: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse poll checkpoint %q: %w", raw, err)
	}
	return at, nil
}

// SaveCheckpoint persists the poll checkpoint
func (s *Store) SaveCheckpoint(ctx context.Context, at time.Time) error {
	if err := s.client.Set(ctx, s.keys.Checkpoint, at.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("failed to save poll checkpoint: %w", err)
	}
	return nil
}
