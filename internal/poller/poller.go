// Package poller implements the periodic scan of the durable order store for
// freshly paid orders and feeds them into the batching work queue
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"notifier/internal/interfaces"
)

// A Poller tracks a checkpoint over the orders table and enqueues new paid
// orders exactly once
type Poller struct {
	orders   interfaces.OrderRepository
	dedup    interfaces.DedupStore
	queue    interfaces.OrderEnqueuer
	logger   *zerolog.Logger
	interval time.Duration

	// in-memory checkpoint; persisted after every advancing tick
	checkpoint time.Time
}

// New creates a poller over the order repository, dedup store and work queue
func New(
	orders interfaces.OrderRepository, dedup interfaces.DedupStore, queue interfaces.OrderEnqueuer,
	interval time.Duration, logger *zerolog.Logger,
) *Poller {
	return &Poller{
		orders:   orders,
		dedup:    dedup,
		queue:    queue,
		logger:   logger,
		interval: interval,
	}
}

// Run restores the checkpoint, then polls on every tick until ctx is
// cancelled. Tick failures are logged; the next tick retries naturally via
// the checkpoint.
func (p *Poller) Run(ctx context.Context) {
	p.restoreCheckpoint(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Time("checkpoint", p.checkpoint).
		Msg("Order poller started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Order poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// restoreCheckpoint loads the persisted checkpoint. With none saved the
// poller starts from now, so a first run never reprocesses all history.
func (p *Poller) restoreCheckpoint(ctx context.Context) {
	at, err := p.dedup.Checkpoint(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to restore poll checkpoint, starting from now")
	}
	if at.IsZero() {
		at = time.Now()
	}
	p.checkpoint = at
}

func (p *Poller) tick(ctx context.Context) {
	rows, err := p.orders.PaidOrdersSince(ctx, p.checkpoint)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to query paid orders")
		return
	}
	if len(rows) == 0 {
		return
	}

	// one bad row must not abort the batch
	valid := rows[:0:0]
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			p.logger.Warn().
				Err(err).
				Str("order_id", rows[i].ID).
				Msg("Skipping invalid order row")
			continue
		}
		valid = append(valid, rows[i])
	}
	if len(valid) == 0 {
		return
	}

	ids := make([]string, len(valid))
	byID := make(map[string]int, len(valid))
	for i := range valid {
		ids[i] = valid[i].ID
		byID[valid[i].ID] = i
	}

	fresh, err := p.dedup.FilterProcessed(ctx, ids)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to check processed orders, skipping tick")
		return
	}

	queued := make([]string, 0, len(fresh))
	for _, id := range fresh {
		order := valid[byID[id]]
		if err := p.queue.EnqueueOrder(ctx, order.Summary()); err != nil {
			p.logger.Error().
				Err(err).
				Str("order_id", id).
				Msg("Failed to enqueue order for batching")
			continue
		}
		queued = append(queued, id)
	}

	if len(queued) > 0 {
		if err := p.dedup.MarkProcessed(ctx, queued); err != nil {
			p.logger.Error().Err(err).Msg("Failed to mark orders processed")
		}
	}

	// advance even on an all-duplicate tick so the window keeps moving
	p.advanceCheckpoint(ctx, valid[len(valid)-1].UpdatedAt)

	if len(queued) > 0 {
		p.logger.Info().
			Int("found", len(rows)).
			Int("queued", len(queued)).
			Time("checkpoint", p.checkpoint).
			Msg("Queued paid orders for batching")
	}
}

// advanceCheckpoint moves the checkpoint forward, never backward, and
// persists it immediately
func (p *Poller) advanceCheckpoint(ctx context.Context, at time.Time) {
	if at.Before(p.checkpoint) {
		return
	}
	p.checkpoint = at
	if err := p.dedup.SaveCheckpoint(ctx, at); err != nil {
		p.logger.Error().Err(err).Msg("Failed to persist poll checkpoint")
	}
}
