// Package notify implements the per-order admin alerts: the active-orders
// hash, the pub/sub events and the outbox that makes delivery eventually
// consistent when the shared transport misbehaves.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"notifier/internal/breaker"
	"notifier/internal/interfaces"
	"notifier/internal/models"
)

// A Service owns the lifecycle of active order notifications
type Service struct {
	store    interfaces.NotificationStore
	executor *breaker.Executor
	logger   *zerolog.Logger
	channel  string
	maxAge   time.Duration
}

// NewService creates a notification service over the shared store. All store
// calls go through one executor, so every operation shares a single breaker.
func NewService(
	store interfaces.NotificationStore, executor *breaker.Executor, channel string,
	maxAge time.Duration, logger *zerolog.Logger,
) *Service {
	return &Service{
		store:    store,
		executor: executor,
		logger:   logger,
		channel:  channel,
		maxAge:   maxAge,
	}
}

// NotifyConfirmedOrder stores the notification in the active-orders hash and
// publishes a "new" event. A failure that survives the retry budget is
// absorbed into an outbox entry; the caller always sees success.
func (s *Service) NotifyConfirmedOrder(ctx context.Context, n models.OrderNotification) error {
	if n.NotifiedAt.IsZero() {
		n.NotifiedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", n.OrderID).Msg("Failed to serialize notification")
		return err
	}

	err = s.executor.Execute(
		ctx, func(ctx context.Context) error {
			return s.store.SetActive(ctx, n.OrderID, payload)
		},
	)
	if err == nil {
		err = s.publishEvent(ctx, models.NewOrderEventFor(n))
	}

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_id", n.OrderID).
			Msg("Delivery failed after retries, queueing to outbox")
		s.queueOutbox(
			ctx, models.OutboxEntry{
				Action:       models.OutboxActionNew,
				OrderID:      n.OrderID,
				Notification: &n,
				Channel:      s.channel,
				QueuedAt:     time.Now().UTC(),
			},
		)
	}

	return nil
}

// RemoveOrder deletes the notification from the hash and publishes a
// "removed" event, with the same outbox fallback as NotifyConfirmedOrder.
func (s *Service) RemoveOrder(ctx context.Context, orderID string) error {
	err := s.executor.Execute(
		ctx, func(ctx context.Context) error {
			return s.store.DeleteActive(ctx, orderID)
		},
	)
	if err == nil {
		err = s.publishEvent(ctx, models.RemovedOrderEventFor(orderID))
	}

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_id", orderID).
			Msg("Removal delivery failed after retries, queueing to outbox")
		s.queueOutbox(
			ctx, models.OutboxEntry{
				Action:   models.OutboxActionRemoved,
				OrderID:  orderID,
				Channel:  s.channel,
				QueuedAt: time.Now().UTC(),
			},
		)
	}

	return nil
}

// GetActiveOrders reads the whole active-orders hash. Entries that fail to
// parse are logged and skipped; they are purged later by CleanupOldOrders.
func (s *Service) GetActiveOrders(ctx context.Context) ([]models.OrderNotification, error) {
	var entries map[string]string
	err := s.executor.Execute(
		ctx, func(ctx context.Context) error {
			var readErr error
			entries, readErr = s.store.ActiveOrders(ctx)
			return readErr
		},
	)
	if err != nil {
		return nil, err
	}

	orders := make([]models.OrderNotification, 0, len(entries))
	for orderID, raw := range entries {
		var n models.OrderNotification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			s.logger.Warn().
				Err(err).
				Str("order_id", orderID).
				Msg("Skipping corrupt active-order entry")
			continue
		}
		orders = append(orders, n)
	}

	return orders, nil
}

// CleanupOldOrders deletes active-order entries older than the configured
// threshold. An entry that cannot be parsed has no age, so it is deleted
// unconditionally. Returns the number of deleted entries.
func (s *Service) CleanupOldOrders(ctx context.Context) (int, error) {
	var entries map[string]string
	err := s.executor.Execute(
		ctx, func(ctx context.Context) error {
			var readErr error
			entries, readErr = s.store.ActiveOrders(ctx)
			return readErr
		},
	)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	deleted := 0
	for orderID, raw := range entries {
		var n models.OrderNotification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			s.logger.Warn().
				Str("order_id", orderID).
				Msg("Deleting unparseable active-order entry")
		} else if n.Age(now) <= s.maxAge {
			continue
		}

		if err := s.store.DeleteActive(ctx, orderID); err != nil {
			s.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to delete stale order")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Cleaned up stale active orders")
	}
	return deleted, nil
}

// ProcessOutboxBatch pops up to maxItems outbox entries FIFO and replays them.
// On a replay failure the entry goes back to the head and the batch stops, so
// ordering is preserved and a persistent failure cannot hot-loop. Returns the
// number of successfully replayed entries.
func (s *Service) ProcessOutboxBatch(ctx context.Context, maxItems int) (int, error) {
	processed := 0
	for processed < maxItems {
		raw, err := s.store.PopOutbox(ctx)
		if err != nil {
			return processed, err
		}
		if raw == nil {
			break
		}

		var entry models.OutboxEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.logger.Error().Err(err).Msg("Dropping malformed outbox entry")
			continue
		}
		if err := entry.Validate(); err != nil {
			s.logger.Error().Err(err).Str("order_id", entry.OrderID).Msg("Dropping invalid outbox entry")
			continue
		}

		if err := s.applyOutboxEntry(ctx, entry); err != nil {
			s.logger.Warn().
				Err(err).
				Str("order_id", entry.OrderID).
				Str("action", string(entry.Action)).
				Msg("Outbox replay failed, pushing entry back and halting the batch")
			if pushErr := s.store.PushBackOutbox(ctx, raw); pushErr != nil {
				s.logger.Error().Err(pushErr).Str("order_id", entry.OrderID).Msg("Failed to push back outbox entry")
			}
			return processed, err
		}
		processed++
	}

	return processed, nil
}

// applyOutboxEntry replays one deferred side effect. A "new" action re-writes
// the hash entry before publishing; a "removed" action only re-publishes:
// the delete already happened logically, and re-deleting could race a newer
// record for the same order id.
func (s *Service) applyOutboxEntry(ctx context.Context, entry models.OutboxEntry) error {
	if entry.Action == models.OutboxActionNew {
		payload, err := json.Marshal(entry.Notification)
		if err != nil {
			return err
		}
		err = s.executor.Execute(
			ctx, func(ctx context.Context) error {
				return s.store.SetActive(ctx, entry.OrderID, payload)
			},
		)
		if err != nil {
			return err
		}
		return s.publishEventOn(ctx, entry.Channel, models.NewOrderEventFor(*entry.Notification))
	}

	return s.publishEventOn(ctx, entry.Channel, models.RemovedOrderEventFor(entry.OrderID))
}

func (s *Service) publishEvent(ctx context.Context, event models.AdminEvent) error {
	return s.publishEventOn(ctx, s.channel, event)
}

func (s *Service) publishEventOn(ctx context.Context, channel string, event models.AdminEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.executor.Execute(
		ctx, func(ctx context.Context) error {
			return s.store.Publish(ctx, channel, payload)
		},
	)
}

// queueOutbox appends the failed side effect to the outbox. If even this
// fails the entry is lost; that is logged loudly, but the caller still gets
// success since the next poll or admin action converges the state.
func (s *Service) queueOutbox(ctx context.Context, entry models.OutboxEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", entry.OrderID).Msg("Failed to serialize outbox entry")
		return
	}
	if err := s.store.EnqueueOutbox(ctx, raw); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", entry.OrderID).
			Str("action", string(entry.Action)).
			Msg("Failed to enqueue outbox entry, side effect lost")
	}
}
