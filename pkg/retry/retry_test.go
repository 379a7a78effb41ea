package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	p := DefaultPolicy("test")
	p.MaxAttempts = attempts
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	p.JitterFraction = 0
	return p
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastErrorWhenAttemptsRunOut(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func(ctx context.Context) error {
		calls++
		return errors.New("still broken")
	})

	require.EqualError(t, err, "still broken")
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	base := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		return Permanent(base)
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestDoHonoursClassifier(t *testing.T) {
	p := fastPolicy(4)
	p.Retryable = func(err error) bool { return err.Error() == "retry me" }

	calls := 0
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return errors.New("do not retry")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(3), func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestValueReturnsResult(t *testing.T) {
	calls := 0
	got, err := Value(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("once")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
