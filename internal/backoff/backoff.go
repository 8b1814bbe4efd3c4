// Package backoff provides bounded polling with exponential backoff and
// jitter. The stream lifecycle controller uses it to wait for a superseded
// generation task to unwind without ever blocking a handler indefinitely.
package backoff

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config configures the polling behavior.
type Config struct {
	// InitialDelay is the delay between the first and second poll.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff between polls.
	MaxDelay time.Duration
	// Budget is the total time after which polling stops.
	Budget time.Duration
}

// DefaultConfig returns sensible defaults for stream stop waits.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Budget:       10 * time.Second,
	}
}

// Poll calls check until it returns true, an error, or the budget elapses.
// Returns true when the condition held within budget, false when the budget
// ran out. Never waits unbounded: the final poll happens at the budget edge.
func Poll(ctx context.Context, cfg Config, check func(ctx context.Context) (bool, error)) (bool, error) {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig().InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultConfig().Budget
	}

	deadline := time.Now().Add(cfg.Budget)
	delay := cfg.InitialDelay

	for {
		done, err := check(ctx)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		// Jittered sleep, clamped so the last poll lands on the deadline.
		sleepDur := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		if sleepDur > remaining {
			sleepDur = remaining
		}

		timer := time.NewTimer(sleepDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, fmt.Errorf("poll cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(math.Min(float64(delay*2), float64(cfg.MaxDelay)))
	}
}
