// Package retry runs fallible operations with exponential backoff.
package retry

import (
	"context"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// OnRetry, if set, is called before every wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultConfig returns the backoff used to reach external brokers.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     time.Minute,
		Multiplier:  2.0,
	}
}

// Do calls fn until it succeeds, the attempts run out or ctx ends. The
// error of the last attempt is returned.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var err error

	wait := cfg.InitialWait
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}

		wait = time.Duration(float64(wait) * cfg.Multiplier)
		if cfg.MaxWait > 0 && wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}
	return result, err
}
