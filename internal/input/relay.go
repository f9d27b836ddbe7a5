// Package input folds pointer events from display clients into the pending
// input the render tick consumes.
package input

import (
	"sync"

	"github.com/bft-labs/framecast/internal/domain"
)

// Relay accumulates input deltas between render ticks. Any number of
// goroutines may Submit; a single consumer (the render tick) calls Consume.
type Relay struct {
	mu       sync.Mutex
	pending  domain.PendingInput
	accepted uint64
	rejected uint64
}

// NewRelay returns an empty relay.
func NewRelay() *Relay {
	return &Relay{}
}

// Submit adds ev's deltas to the pending input and records its button state.
// Malformed events are counted and dropped with domain.ErrMalformedInput;
// callers are free to ignore the error.
func (r *Relay) Submit(ev domain.InputEvent) error {
	if err := ev.Validate(); err != nil {
		r.mu.Lock()
		r.rejected++
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.pending.DeltaX += ev.DeltaX
	r.pending.DeltaY += ev.DeltaY
	r.pending.Scroll += ev.ScrollDelta
	r.pending.LeftButton = ev.LeftButton
	r.pending.RightButton = ev.RightButton
	r.accepted++
	r.mu.Unlock()
	return nil
}

// Consume returns everything accumulated since the previous Consume and
// zeroes the deltas. Button flags are left as last reported.
func (r *Relay) Consume() domain.PendingInput {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.pending
	r.pending.DeltaX = 0
	r.pending.DeltaY = 0
	r.pending.Scroll = 0
	return out
}

// Counts returns accepted and rejected event totals.
func (r *Relay) Counts() (accepted, rejected uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepted, r.rejected
}
