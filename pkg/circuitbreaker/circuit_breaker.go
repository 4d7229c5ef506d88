package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

const (
	defaultMaxFailures    = 1
	defaultHalfOpenProbes = 3
)

// ErrOpen is matched by errors.Is for every call rejected by a breaker
var ErrOpen = errors.New("circuit breaker open")

// RejectedError reports which breaker refused a call and in which state
type RejectedError struct {
	Name  string
	State State
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

func (e *RejectedError) Unwrap() error { return ErrOpen }

// IsOpen reports whether err came from a rejected call
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

// Settings configure a Breaker. Zero values fall back to defaults.
type Settings struct {
	Name string
	// MaxFailures is the number of consecutive counted failures that opens the breaker
	MaxFailures uint32
	// OpenTimeout is how long calls are rejected before probing again
	OpenTimeout time.Duration
	// HalfOpenProbes calls are admitted while half-open; that many successes close it
	HalfOpenProbes uint32
	// IsFailure decides which errors count. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange runs with the breaker lock held and must not call back into it
	OnStateChange func(name string, from, to State)
}

// Counts is a point-in-time view of a breaker
type Counts struct {
	Name                string
	State               State
	Requests            uint32
	ConsecutiveFailures uint32
	Successes           uint32
	LastFailure         time.Time
}

// Breaker guards calls to an upstream that can fail as a whole
type Breaker struct {
	settings Settings
	logger   *logrus.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   uint32
}

func New(settings Settings, logger *logrus.Logger) *Breaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = defaultMaxFailures
	}
	if settings.HalfOpenProbes == 0 {
		settings.HalfOpenProbes = defaultHalfOpenProbes
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Breaker{
		settings: settings,
		logger:   logger,
		now:      time.Now,
		counts:   Counts{Name: settings.Name},
	}
}

// Execute runs fn unless the breaker rejects the call. fn's own error is
// returned unchanged.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireOpen()

	switch b.state {
	case StateOpen:
		return &RejectedError{Name: b.settings.Name, State: b.state}
	case StateHalfOpen:
		if b.probes >= b.settings.HalfOpenProbes {
			return &RejectedError{Name: b.settings.Name, State: b.state}
		}
		b.probes++
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.settings.IsFailure(err) {
		b.counts.Successes++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && b.counts.Successes >= b.settings.HalfOpenProbes {
			b.setState(StateClosed)
		}
		return
	}

	b.counts.ConsecutiveFailures++
	b.counts.LastFailure = b.now()
	if b.state == StateHalfOpen || b.counts.ConsecutiveFailures >= b.settings.MaxFailures {
		b.openedAt = b.counts.LastFailure
		b.setState(StateOpen)
	}
}

// expireOpen moves an open breaker to half-open once OpenTimeout has passed.
// Caller holds mu.
func (b *Breaker) expireOpen() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.OpenTimeout {
		b.setState(StateHalfOpen)
	}
}

// setState applies a transition and resets the per-state counters. Caller holds mu.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.probes = 0
	b.counts.Successes = 0
	if to == StateClosed {
		b.counts.ConsecutiveFailures = 0
	}

	entry := b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.settings.Name,
		"from":            from.String(),
		"to":              to.String(),
		"failures":        b.counts.ConsecutiveFailures,
	})
	if to == StateOpen {
		entry.Warn("Circuit breaker opened")
	} else {
		entry.Info("Circuit breaker state changed")
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.settings.Name, from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireOpen()
	return b.state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := b.counts
	counts.State = b.state
	return counts
}
