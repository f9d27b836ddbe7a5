package framecast

import (
	"time"

	"github.com/bft-labs/framecast/internal/app"
	"github.com/bft-labs/framecast/internal/domain"
)

// StateChangeEvent is emitted after every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FramePublishedEvent is emitted when a readback becomes the latest frame.
type FramePublishedEvent struct {
	Seq         uint64
	Width       int
	Height      int
	Bytes       int
	GPUTransfer time.Duration
	Processing  time.Duration
}

// CaptureErrorEvent is emitted when a readback fails. Fatal is set when the
// device was lost and the bridge is about to crash.
type CaptureErrorEvent struct {
	Seq   uint64
	Err   error
	Fatal bool
}

// EventHandler receives bridge events. Frame and capture events are called
// from the readback goroutine and must return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnFramePublished(FramePublishedEvent)
	OnCaptureError(CaptureErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)       {}
func (BaseEventHandler) OnFramePublished(FramePublishedEvent) {}
func (BaseEventHandler) OnCaptureError(CaptureErrorEvent)     {}

// eventEmitterWrapper adapts EventHandler to the internal emitter and
// readback hooks.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) onPublish(f *domain.Frame, s domain.PerformanceSample) {
	if e.handler == nil {
		return
	}
	e.handler.OnFramePublished(FramePublishedEvent{
		Seq:         f.Seq,
		Width:       f.Width,
		Height:      f.Height,
		Bytes:       s.Bytes,
		GPUTransfer: s.GPUTransfer,
		Processing:  s.Processing,
	})
}

func (e *eventEmitterWrapper) onError(seq uint64, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnCaptureError(CaptureErrorEvent{
		Seq:   seq,
		Err:   err,
		Fatal: IsFatal(err),
	})
}
