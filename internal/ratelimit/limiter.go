// Package ratelimit gates the render tick to a target frame rate.
//
// The host loop is expected to spin faster than the target; the limiter
// decides per iteration whether a tick runs. It never sleeps.
package ratelimit

import (
	"errors"
	"math"
	"sync"
	"time"
)

// ErrInvalidRate is returned for a non-positive or non-finite target.
var ErrInvalidRate = errors.New("ratelimit: target rate must be positive")

// Limiter admits at most one tick per 1/target interval.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	started  bool
	now      func() time.Time

	executed uint64
	skipped  uint64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter for targetFPS ticks per second.
func New(targetFPS float64, opts ...Option) (*Limiter, error) {
	interval, err := intervalFor(targetFPS)
	if err != nil {
		return nil, err
	}
	l := &Limiter{interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow reports whether a tick should execute now. The first call always
// executes. An executed tick becomes the reference for the next interval.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.started && now.Sub(l.last) < l.interval {
		l.skipped++
		return false
	}
	l.started = true
	l.last = now
	l.executed++
	return true
}

// SetTarget changes the target rate. The previous tick time is kept, so the
// new interval applies from the last executed tick.
func (l *Limiter) SetTarget(targetFPS float64) error {
	interval, err := intervalFor(targetFPS)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.interval = interval
	l.mu.Unlock()
	return nil
}

// Interval returns the minimum spacing between executed ticks.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Counts returns executed and skipped tick counts.
func (l *Limiter) Counts() (executed, skipped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.executed, l.skipped
}

func intervalFor(fps float64) (time.Duration, error) {
	// NaN fails every comparison
	if !(fps > 0) || fps > 1e9 {
		return 0, ErrInvalidRate
	}
	// Rounded up so the interval never undercuts 1/fps.
	return time.Duration(math.Ceil(float64(time.Second) / fps)), nil
}
