// Package exchange implements the single-slot, latest-wins store between the
// readback stage and the serving layer.
//
// There is no queue. A publish replaces whatever was there; a read returns
// whatever is there. Neither side ever waits for the other: publish is a
// compare-and-swap loop and read is a single atomic load.
package exchange

import (
	"sync/atomic"

	"github.com/bft-labs/framecast/internal/domain"
)

// Exchange holds the most recently completed frame.
type Exchange struct {
	latest    atomic.Pointer[domain.Frame]
	published atomic.Uint64
	rejected  atomic.Uint64
}

// New returns an empty exchange.
func New() *Exchange {
	return &Exchange{}
}

// Publish stores f as the latest frame. It returns false, leaving the slot
// untouched, if f is nil, malformed, or older than the frame already held.
// Frames handed to Publish must not be modified afterwards.
func (e *Exchange) Publish(f *domain.Frame) bool {
	if !f.Valid() {
		e.rejected.Add(1)
		return false
	}
	for {
		cur := e.latest.Load()
		if cur != nil && f.Seq < cur.Seq {
			e.rejected.Add(1)
			return false
		}
		if e.latest.CompareAndSwap(cur, f) {
			e.published.Add(1)
			return true
		}
	}
}

// Latest returns the newest frame, or domain.ErrNotReady before the first
// publish. The returned frame is shared and read-only.
func (e *Exchange) Latest() (*domain.Frame, error) {
	f := e.latest.Load()
	if f == nil {
		return nil, domain.ErrNotReady
	}
	return f, nil
}

// Published counts accepted frames.
func (e *Exchange) Published() uint64 {
	return e.published.Load()
}

// Rejected counts frames refused as stale or malformed.
func (e *Exchange) Rejected() uint64 {
	return e.rejected.Load()
}
