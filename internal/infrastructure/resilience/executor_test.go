package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestRetryReturnsValueAfterTransientFailures(t *testing.T) {
	var waits []time.Duration
	exec := NewExecutor(Config{
		RetryMaxAttempts:    4,
		RetryInitialBackoff: 10 * time.Millisecond,
		RetryMaxBackoff:     25 * time.Millisecond,
		RetryMultiplier:     2,
		RetryJitter:         5 * time.Millisecond,
		BreakerEnabled:      false,
	}, WithSleeper(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))

	attempts := 0
	errBusy := errors.New("503 overloaded")
	got, err := Retry(context.Background(), exec, "op", func(context.Context) (string, error) {
		attempts++
		if attempts < 4 {
			return "", errBusy
		}
		return "done", nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errBusy), RecordFailure: true}
	})
	if err != nil || got != "done" {
		t.Fatalf("expected done, got %q (%v)", got, err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
	bases := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}
	if len(waits) != len(bases) {
		t.Fatalf("expected %d waits, got %v", len(bases), waits)
	}
	for i, base := range bases {
		if waits[i] < base || waits[i] >= base+5*time.Millisecond {
			t.Fatalf("wait %d: expected [%v, %v), got %v", i, base, base+5*time.Millisecond, waits[i])
		}
	}
}

func TestRetryExhaustedWrapsLastError(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	}, WithSleeper(func(context.Context, time.Duration) error { return nil }))

	errBusy := errors.New("rate limit")
	attempts := 0
	_, err := Retry(context.Background(), exec, "op", func(context.Context) (int, error) {
		attempts++
		return 0, errBusy
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !IsRetriesExhausted(err) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if !errors.Is(err, errBusy) {
		t.Fatalf("expected exhausted error to unwrap to the last failure, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsWhenContextIsCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := NewExecutor(Config{
		RetryMaxAttempts:    4,
		RetryInitialBackoff: time.Hour,
		RetryMaxBackoff:     time.Hour,
		BreakerEnabled:      false,
	})

	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, exec, "op", func(context.Context) (int, error) {
			attempts++
			return 0, errors.New("unavailable")
		}, func(error) ErrorClassification {
			return ErrorClassification{Retryable: true}
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context cancellation, got %v", err)
		}
		if IsRetriesExhausted(err) {
			t.Fatalf("cancellation must not look like exhausted retries")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("retry loop did not stop after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", attempts)
	}
}

func TestBackoffIsCappedAndJittered(t *testing.T) {
	exec := NewExecutor(Config{
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     300 * time.Millisecond,
		RetryMultiplier:     2,
		RetryJitter:         50 * time.Millisecond,
	}, WithJitterSource(func(bound time.Duration) time.Duration { return bound - 1 }))

	want := []time.Duration{100, 200, 300, 300}
	for i, base := range want {
		got := exec.Backoff(i + 1)
		expected := base*time.Millisecond + 50*time.Millisecond - 1
		if got != expected {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, expected, got)
		}
	}
}
