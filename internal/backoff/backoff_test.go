package backoff

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollImmediateSuccess(t *testing.T) {
	t.Parallel()

	var calls int32
	ok, err := Poll(context.Background(), DefaultConfig(), func(_ context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected success")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestPollEventualSuccess(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Budget: 2 * time.Second}
	var calls int32
	ok, err := Poll(context.Background(), cfg, func(_ context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected eventual success")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestPollBudgetExhausted(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Budget: 60 * time.Millisecond}
	start := time.Now()
	ok, err := Poll(context.Background(), cfg, func(_ context.Context) (bool, error) {
		return false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected budget exhaustion")
	}
	// Bounded: well under the worst case of budget + one max delay.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("poll overran its budget: %v", elapsed)
	}
}

func TestPollPropagatesCheckError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("store unavailable")
	_, err := Poll(context.Background(), DefaultConfig(), func(_ context.Context) (bool, error) {
		return false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped check error, got %v", err)
	}
}

func TestPollContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Budget: 5 * time.Second}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Poll(ctx, cfg, func(_ context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
