package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "fightgen/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{9, 1 * time.Second, "Ninth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestRoundBackoff(t *testing.T) {
	backoff := NewRoundBackoff(time.Second, 30*time.Second)

	expected := map[int]time.Duration{
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
		4: 16 * time.Second,
		5: 30 * time.Second,
		8: 30 * time.Second,
	}
	for attempt, want := range expected {
		if got := backoff.NextDelay(attempt); got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("Delay %v outside jitter bounds", delay)
		}
		delays[delay] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func noSleep(slept *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	var slept []time.Duration
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		Sleep:       noSleep(&slept),
	}

	if err := Do(context.Background(), op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(slept) != 2 {
		t.Errorf("Expected 2 sleeps, got %d", len(slept))
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	var slept []time.Duration
	persistent := errors.New("persistent error")
	op := func(ctx context.Context) error {
		attempts++
		return persistent
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		Sleep:       noSleep(&slept),
	}

	err := Do(context.Background(), op, cfg)
	if !errors.Is(err, persistent) {
		t.Errorf("Expected wrapped persistent error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(slept) != 2 {
		t.Errorf("Expected no sleep after the final attempt, got %d sleeps", len(slept))
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeAuth, "invalid api key")
	}

	err := Do(context.Background(), op, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{}})
	if !errs.Is(err, errs.ErrorTypeAuth) {
		t.Errorf("Expected auth error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		cancel()
		return errs.New(errs.ErrorTypeServerError, "unavailable")
	}

	err := Do(ctx, op, &Config{MaxAttempts: 5, Backoff: &ConstantBackoff{Delay: time.Hour}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := &ErrorTypeBackoff{
		NetworkErrorBackoff: &ConstantBackoff{Delay: 1 * time.Second},
		RateLimitBackoff:    &ConstantBackoff{Delay: 10 * time.Second},
		ServerErrorBackoff:  &ConstantBackoff{Delay: 5 * time.Second},
		DefaultBackoff:      &ConstantBackoff{Delay: 2 * time.Second},
	}

	tests := []struct {
		err  error
		want time.Duration
	}{
		{errs.New(errs.ErrorTypeNetwork, "reset"), 1 * time.Second},
		{errs.New(errs.ErrorTypeRateLimit, "429"), 10 * time.Second},
		{errs.New(errs.ErrorTypeServerError, "502"), 5 * time.Second},
		{errors.New("plain"), 2 * time.Second},
	}
	for _, tt := range tests {
		if got := etb.DelayForError(1, tt.err); got != tt.want {
			t.Errorf("%v: expected %v, got %v", tt.err, tt.want, got)
		}
	}

	var slept []time.Duration
	attempts := 0
	_ = Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errs.New(errs.ErrorTypeRateLimit, "slow down")
		}
		return nil
	}, &Config{MaxAttempts: 2, Backoff: etb, Sleep: noSleep(&slept)})
	if len(slept) != 1 || slept[0] != 10*time.Second {
		t.Errorf("Expected rate limit delay, got %v", slept)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	var slept []time.Duration
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.New(errs.ErrorTypeNetwork, "timeout")
		}
		return "ok", nil
	}, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{}, Sleep: noSleep(&slept)})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result ok, got %q", result)
	}
}

func TestWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation, got %v", err)
	}
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
