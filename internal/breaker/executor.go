// Package breaker implements the retry executor guarding the shared transport:
// exponential backoff with jitter around a single circuit breaker shared by
// every operation routed through one executor instance.
package breaker

import (
	"context"
	"errors"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"notifier/internal/config"
)

// ErrBreakerOpen is the fast-fail rejection returned while the breaker is
// open. Callers must degrade (outbox, drop) instead of blocking on it.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// An Operation is one attemptable call against the shared transport
type Operation func(ctx context.Context) error

// An Executor wraps operations with retry, backoff and a shared breaker
type Executor struct {
	cb     *gobreaker.CircuitBreaker
	retry  config.RetryConfig
	logger *zerolog.Logger
}

// New creates an executor whose breaker trips open after the configured number
// of consecutive failures and allows a single trial call after the cooldown
func New(name string, cbCfg config.CircuitBreakerConfig, retryCfg config.RetryConfig, logger *zerolog.Logger) *Executor {
	cb := gobreaker.NewCircuitBreaker(
		gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cbCfg.Cooldown.Std(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cbCfg.Threshold)
			},
		},
	)

	return &Executor{
		cb:     cb,
		retry:  retryCfg,
		logger: logger,
	}
}

// CanAttempt reports whether the breaker admits a call right now. It is false
// only while the breaker is open and the cooldown has not elapsed; gobreaker
// flips to half-open by itself once it has.
func (e *Executor) CanAttempt() bool {
	return e.cb.State() != gobreaker.StateOpen
}

// Execute runs op through the shared breaker with exponential backoff and
// jitter. It fast-fails with ErrBreakerOpen when the breaker is open, and a
// breaker opening mid-sequence aborts the remaining attempts the same way.
// Exhausting all attempts returns the last operation error.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	if !e.CanAttempt() {
		return ErrBreakerOpen
	}

	return retry.Do(
		func() error {
			_, err := e.cb.Execute(
				func() (any, error) {
					return nil, op(ctx)
				},
			)
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return retry.Unrecoverable(ErrBreakerOpen)
			}
			return err
		},
		retry.Attempts(uint(e.retry.Attempts)),
		retry.Delay(e.retry.InitialDelay.Std()),
		retry.MaxDelay(e.retry.MaxDelay.Std()),
		retry.MaxJitter(e.retry.MaxJitter.Std()),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(
			func(n uint, err error) {
				e.logger.Warn().
					Uint("attempt", n+1).
					Err(err).
					Msg("Retrying operation against shared transport")
			},
		),
	)
}
