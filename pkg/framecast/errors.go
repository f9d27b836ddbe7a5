package framecast

import (
	"errors"
	"time"

	"github.com/bft-labs/framecast/internal/app"
	"github.com/bft-labs/framecast/internal/domain"
)

// Errors returned by the bridge. Use errors.Is to check for them.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrNotReady        = domain.ErrNotReady
	ErrCapture         = domain.ErrCapture
	ErrDeviceLost      = domain.ErrDeviceLost
	ErrEncode          = domain.ErrEncode
	ErrMalformedInput  = domain.ErrMalformedInput
)

// IsFatal reports whether err means the bridge cannot keep rendering.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrDeviceLost)
}

// Frame is a published frame in canonical RGBA order.
type Frame = domain.Frame

// InputEvent is one pointer or wheel report from a display client.
type InputEvent = domain.InputEvent

// Snapshot is the aggregated performance view.
type Snapshot = domain.PerformanceSnapshot

// Backoff is an exponential backoff with jitter, for plugins that retry.
type Backoff = app.Backoff

// NewBackoff creates a Backoff growing from initial to max.
func NewBackoff(initial, max time.Duration) *Backoff {
	return app.NewBackoff(initial, max)
}
