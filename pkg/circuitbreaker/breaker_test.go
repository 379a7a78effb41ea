package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("connection refused")

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("test", cfg)
	b.now = func() time.Time { return now }
	return b, &now
}

func fail() error    { return errRemote }
func succeed() error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []State
	b, _ := newTestBreaker(Config{
		FailureThreshold: 3,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(fail), errRemote)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2})

	require.Error(t, b.Execute(fail))
	require.NoError(t, b.Execute(succeed))
	require.Error(t, b.Execute(fail))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})

	require.Error(t, b.Execute(fail))
	assert.ErrorIs(t, b.Execute(succeed), ErrCircuitOpen)

	*now = now.Add(time.Minute)
	require.NoError(t, b.Execute(succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})

	require.Error(t, b.Execute(fail))
	*now = now.Add(time.Minute)

	require.ErrorIs(t, b.Execute(fail), errRemote)
	assert.Equal(t, StateOpen, b.State())

	*now = now.Add(30 * time.Second)
	assert.ErrorIs(t, b.Execute(succeed), ErrCircuitOpen)
}

func TestBreaker_LimitsConcurrentProbes(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Second})
	require.Error(t, b.Execute(fail))
	*now = now.Add(time.Second)

	err := b.Execute(func() error {
		return b.Execute(succeed)
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1})

	canceled := func() error { return context.Canceled }
	assert.ErrorIs(t, b.Execute(canceled), context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}
