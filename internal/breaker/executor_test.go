package breaker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"notifier/internal/config"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	return &logger
}

func fastRetry(attempts int) config.RetryConfig {
	return config.RetryConfig{
		Attempts:     attempts,
		InitialDelay: config.Duration(time.Millisecond),
		MaxDelay:     config.Duration(10 * time.Millisecond),
		MaxJitter:    config.Duration(time.Millisecond),
	}
}

func TestExecutor_RetriesThenSucceeds(t *testing.T) {
	e := New("test", config.CircuitBreakerConfig{Threshold: 100, Cooldown: config.Duration(time.Second)}, fastRetry(5), testLogger())

	calls := 0
	err := e.Execute(
		context.Background(), func(ctx context.Context) error {
			calls++
			if calls <= 2 {
				return errors.New("transient")
			}
			return nil
		},
	)

	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if calls != 3 {
		t.Errorf("error: expected 3 calls, got %d", calls)
	}
}

func TestExecutor_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	e := New("test", config.CircuitBreakerConfig{Threshold: 100, Cooldown: config.Duration(time.Second)}, fastRetry(4), testLogger())

	lastErr := errors.New("still broken")
	calls := 0
	err := e.Execute(
		context.Background(), func(ctx context.Context) error {
			calls++
			return lastErr
		},
	)

	if !errors.Is(err, lastErr) {
		t.Errorf("error: expected last error to propagate, got %v", err)
	}
	if calls != 4 {
		t.Errorf("error: expected 4 calls, got %d", calls)
	}
}

func TestExecutor_BackoffDelaysDoNotDecrease(t *testing.T) {
	retryCfg := config.RetryConfig{
		Attempts:     3,
		InitialDelay: config.Duration(20 * time.Millisecond),
		MaxDelay:     config.Duration(time.Second),
		MaxJitter:    config.Duration(time.Millisecond),
	}
	e := New("test", config.CircuitBreakerConfig{Threshold: 100, Cooldown: config.Duration(time.Second)}, retryCfg, testLogger())

	var stamps []time.Time
	_ = e.Execute(
		context.Background(), func(ctx context.Context) error {
			stamps = append(stamps, time.Now())
			return errors.New("transient")
		},
	)

	if len(stamps) != 3 {
		t.Fatalf("error: expected 3 attempts, got %d", len(stamps))
	}
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	if first < 20*time.Millisecond {
		t.Errorf("error: first delay %v shorter than the initial delay", first)
	}
	if second <= first {
		t.Errorf("error: delays decreased: first %v, second %v", first, second)
	}
}

func TestExecutor_OpensAfterThresholdAndFastFails(t *testing.T) {
	e := New("test", config.CircuitBreakerConfig{Threshold: 3, Cooldown: config.Duration(time.Minute)}, fastRetry(1), testLogger())

	for i := 0; i < 3; i++ {
		_ = e.Execute(
			context.Background(), func(ctx context.Context) error {
				return errors.New("down")
			},
		)
	}

	if e.CanAttempt() {
		t.Fatalf("error: breaker should be open after 3 consecutive failures")
	}

	calls := 0
	err := e.Execute(
		context.Background(), func(ctx context.Context) error {
			calls++
			return nil
		},
	)

	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("error: expected ErrBreakerOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("error: operation must not run while the breaker is open")
	}
}

func TestExecutor_OpensMidSequence(t *testing.T) {
	// attempts allows 5 calls but the breaker trips after 2 failures,
	// aborting the remaining attempts with the distinct open error.
	e := New("test", config.CircuitBreakerConfig{Threshold: 2, Cooldown: config.Duration(time.Minute)}, fastRetry(5), testLogger())

	calls := 0
	err := e.Execute(
		context.Background(), func(ctx context.Context) error {
			calls++
			return errors.New("down")
		},
	)

	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("error: expected ErrBreakerOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("error: expected the breaker to cut the sequence at 2 calls, got %d", calls)
	}
}

func TestExecutor_HalfOpenRecovery(t *testing.T) {
	e := New("test", config.CircuitBreakerConfig{Threshold: 2, Cooldown: config.Duration(50 * time.Millisecond)}, fastRetry(1), testLogger())

	for i := 0; i < 2; i++ {
		_ = e.Execute(
			context.Background(), func(ctx context.Context) error {
				return errors.New("down")
			},
		)
	}
	if e.CanAttempt() {
		t.Fatalf("error: breaker should be open")
	}

	time.Sleep(60 * time.Millisecond)

	if !e.CanAttempt() {
		t.Fatalf("error: breaker should admit a trial call after the cooldown")
	}

	err := e.Execute(
		context.Background(), func(ctx context.Context) error {
			return nil
		},
	)
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	// one success in half-open closes the breaker again
	if !e.CanAttempt() {
		t.Errorf("error: breaker should be closed after a successful trial")
	}
}

func TestExecutor_ReopensOnHalfOpenFailure(t *testing.T) {
	e := New("test", config.CircuitBreakerConfig{Threshold: 2, Cooldown: config.Duration(50 * time.Millisecond)}, fastRetry(1), testLogger())

	for i := 0; i < 2; i++ {
		_ = e.Execute(
			context.Background(), func(ctx context.Context) error {
				return errors.New("down")
			},
		)
	}

	time.Sleep(60 * time.Millisecond)

	err := e.Execute(
		context.Background(), func(ctx context.Context) error {
			return errors.New("still down")
		},
	)
	if err == nil {
		t.Fatalf("error: expected trial failure to propagate")
	}

	if e.CanAttempt() {
		t.Errorf("error: breaker should reopen after a failed trial")
	}
}
