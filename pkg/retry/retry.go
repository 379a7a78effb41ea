package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ErrPermanent marks an error that must not be retried. Wrap with Permanent.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() []error {
	return []error{p.err, ErrPermanent}
}

// Permanent stops Do from retrying err while keeping it inspectable with errors.Is/As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type Policy struct {
	Name           string
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable classifies errors; nil retries everything not marked Permanent.
	Retryable func(error) bool
	Logger    *zap.Logger
}

func DefaultPolicy(name string) Policy {
	return Policy{
		Name:           name,
		MaxAttempts:    3,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         zap.NewNop(),
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	p := policy.normalized()

	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.Logger.Info("Operation succeeded after retry",
					zap.String("operation", p.Name),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err

		if !p.shouldRetry(err) {
			p.Logger.Debug("Error not retryable",
				zap.String("operation", p.Name),
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			return err
		}

		if attempt == p.MaxAttempts {
			break
		}

		wait := jitter(delay, p.JitterFraction)
		p.Logger.Warn("Operation failed, retrying",
			zap.String("operation", p.Name),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("delay", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(math.Min(float64(p.MaxDelay), float64(delay)*p.Multiplier))
	}

	return lastErr
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p Policy) shouldRetry(err error) bool {
	if errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	delta := time.Duration(rand.Float64() * float64(d) * fraction)
	if rand.Intn(2) == 0 {
		return d - delta
	}
	return d + delta
}
