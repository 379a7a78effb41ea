package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the circuit. Default 5.
	FailureThreshold uint32
	// Cooldown is how long the circuit stays open before probing. Default 30s.
	Cooldown time.Duration
	// Probes is the number of half-open calls allowed, and the number of
	// successes needed to close again. Default 1.
	Probes uint32
	// Ignore reports errors that say nothing about the remote side, such as
	// the caller's own cancellation. They neither fail nor succeed a call.
	Ignore        func(error) bool
	OnStateChange func(name string, from, to State)
}

// Breaker stops calling a failing dependency for a cooldown period.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	inFlight  uint32
	openedAt  time.Time
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes == 0 {
		cfg.Probes = 1
	}
	if cfg.Ignore == nil {
		cfg.Ignore = func(err error) bool {
			return errors.Is(err, context.Canceled)
		}
	}

	return &Breaker{
		name: name,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	probe, err := b.before()
	if err != nil {
		return err
	}

	err = fn()
	b.after(probe, err)
	return err
}

func (b *Breaker) before() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.inFlight >= b.cfg.Probes {
			return false, ErrTooManyRequests
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) after(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.inFlight--
	}
	if err != nil && b.cfg.Ignore(err) {
		return
	}

	switch {
	case err == nil && b.state == StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.Probes {
			b.transition(StateClosed)
		}
	case err == nil:
		b.failures = 0
	case b.state == StateHalfOpen:
		b.transition(StateOpen)
	default:
		b.failures++
		if b.state == StateClosed && b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LogStateChanges is an OnStateChange hook that logs through zap.
func LogStateChanges(log *zap.Logger) func(name string, from, to State) {
	return func(name string, from, to State) {
		log.Warn("Circuit breaker state changed",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
}
