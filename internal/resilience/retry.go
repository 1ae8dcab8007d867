// Package resilience retries operations that fail for transient reasons,
// such as a database that is still starting up.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy describes how an operation is retried: up to Attempts tries,
// sleeping Base, Base*Factor, Base*Factor² ... (capped at Cap) between
// them, each sleep moved by up to ±Jitter of itself.
type Policy struct {
	// Name labels retry log lines. Empty disables logging.
	Name string

	Attempts int
	Base     time.Duration
	Cap      time.Duration
	Factor   float64
	Jitter   float64

	// Retryable decides which errors are worth another try. Nil means
	// IsTransient.
	Retryable func(err error) bool
}

// DatabasePolicy is the policy used while connecting to and migrating the
// plan database.
func DatabasePolicy(name string) Policy {
	return Policy{
		Name:     name,
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Cap:      10 * time.Second,
		Factor:   2,
		Jitter:   0.25,
	}
}

// Do runs fn under p. It stops at the first success, at an error p does not
// consider retryable, when the attempts run out or when ctx is done, and
// returns the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that produce a value, such as opening a pool.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.Attempts || ctx.Err() != nil || !p.Retryable(err) {
			return zero, err
		}

		wait := p.delay(attempt)
		if p.Name != "" {
			zap.L().Warn("resilience: retrying",
				zap.String("operation", p.Name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (p Policy) withDefaults() Policy {
	def := DatabasePolicy(p.Name)
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Base <= 0 {
		p.Base = def.Base
	}
	if p.Cap <= 0 {
		p.Cap = def.Cap
	}
	if p.Factor <= 0 {
		p.Factor = def.Factor
	}
	p.Jitter = max(p.Jitter, 0)
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// delay is the sleep after the given failed attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := math.Min(float64(p.Base)*math.Pow(p.Factor, float64(attempt-1)), float64(p.Cap))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(max(d, 0))
}
