package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"orderbridge/internal/models"
)

// Policy is an exponential backoff schedule. The zero value runs the
// operation once.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	// Jitter spreads each delay by up to this fraction either way
	Jitter float64
	// Retryable filters which errors get another attempt. Nil retries all.
	Retryable func(error) bool
	// OnRetry runs before each wait with the failed attempt number
	OnRetry func(attempt int, err error, delay time.Duration)
}

func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		MaxAttempts:  5,
		Jitter:       0.25,
	}
}

// PolicyFromConfig applies the retry section of the config over the
// defaults. attempts > 0 overrides the configured attempt count.
func PolicyFromConfig(cfg models.RetryConfig, attempts int) Policy {
	p := DefaultPolicy()
	if cfg.InitialBackoffMs > 0 {
		p.InitialDelay = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		p.MaxDelay = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if attempts > 0 {
		p.MaxAttempts = attempts
	}
	return p
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx ends. The last operation error is returned, or ctx.Err()
// when the context stopped the loop.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay is the wait after the given failed attempt, starting at 1
func (p Policy) Delay(attempt int) time.Duration {
	multiplier := max(p.Multiplier, 1)
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(max(attempt, 1)-1))

	if p.Jitter > 0 {
		delay += delay * p.Jitter * (2*rand.Float64() - 1)
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
