// Package batch implements the periodic flush of the pending order batch
package batch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"notifier/internal/breaker"
	"notifier/internal/interfaces"
	"notifier/internal/models"
)

// A Scheduler flushes the pending batch once per window and persists the
// day's revenue aggregate
type Scheduler struct {
	store     interfaces.BatchFlusher
	publisher interfaces.Publisher
	revenue   interfaces.RevenueRepository
	executor  *breaker.Executor
	logger    *zerolog.Logger

	channel         string
	interval        time.Duration
	maxOrdersToSend int
}

// NewScheduler creates a batch scheduler over the atomic store and revenue repo
func NewScheduler(
	store interfaces.BatchFlusher, publisher interfaces.Publisher, revenue interfaces.RevenueRepository,
	executor *breaker.Executor, channel string, interval time.Duration, maxOrdersToSend int,
	logger *zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		store:           store,
		publisher:       publisher,
		revenue:         revenue,
		executor:        executor,
		logger:          logger,
		channel:         channel,
		interval:        interval,
		maxOrdersToSend: maxOrdersToSend,
	}
}

// Run flushes the pending batch on every tick until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("Batch scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Batch scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick drains one window. The store-side publish happens inside
// FlushAndPublish; the service-layer publish below is deliberate duplication
// since downstream relays may only subscribe at this layer.
func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.store.FlushAndPublish(ctx, s.channel, s.maxOrdersToSend)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to flush pending batch")
		return
	}
	if res == nil {
		return
	}

	event := models.BatchEvent{
		Type:         "batch",
		Count:        res.Count,
		TotalRevenue: res.Total,
		Orders:       res.Orders,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to serialize batch event")
	} else {
		err = s.executor.Execute(
			ctx, func(ctx context.Context) error {
				return s.publisher.Publish(ctx, s.channel, payload)
			},
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int("count", res.Count).
				Msg("Failed to re-publish batch event at the service layer")
		}
	}

	// revenue failure is fatal to this tick only: logged, not retried,
	// and the schedule keeps running
	day := time.Now().UTC()
	if err := s.revenue.AddDailyRevenue(ctx, day, res.Total); err != nil {
		s.logger.Error().
			Err(err).
			Float64("total", res.Total).
			Msg("Failed to persist daily revenue aggregate")
		return
	}

	s.logger.Info().
		Int("count", res.Count).
		Float64("total", res.Total).
		Msg("Flushed pending batch")
}
