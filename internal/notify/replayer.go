package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// A Replayer periodically drains the outbox for the lifetime of the process
type Replayer struct {
	service   *Service
	interval  time.Duration
	batchSize int
	logger    *zerolog.Logger
}

// NewReplayer creates a replay loop with the given drain interval and batch size
func NewReplayer(service *Service, interval time.Duration, batchSize int, logger *zerolog.Logger) *Replayer {
	return &Replayer{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run drains the outbox on every tick until ctx is cancelled. Tick failures
// are logged and never propagate; the loop itself must not die.
func (r *Replayer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("Outbox replay loop started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Outbox replay loop stopped")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Replayer) drain(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Recovered panic in outbox replay")
		}
	}()

	processed, err := r.service.ProcessOutboxBatch(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn().Err(err).Int("processed", processed).Msg("Outbox replay halted, will retry next tick")
		return
	}
	if processed > 0 {
		r.logger.Info().Int("processed", processed).Msg("Replayed outbox entries")
	}
}

// RunCleanup sweeps stale and corrupt active-order entries on every tick
// until ctx is cancelled
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Active-order cleanup loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Active-order cleanup loop stopped")
			return
		case <-ticker.C:
			if _, err := s.CleanupOldOrders(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Cleanup pass failed, will retry next tick")
			}
		}
	}
}
