// Package readback moves rendered frames from the device to the frame
// exchange without stalling the render tick.
//
// Copies are pipelined: up to Depth copies may be in flight. Completions
// arrive on the device's goroutine, are normalized to RGBA8 and published
// only if no newer frame has been published in the meantime.
package readback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/ports"
)

// DefaultDepth is the default number of copies allowed in flight.
const DefaultDepth = 2

// Hooks observe stage outcomes. Both run on the device goroutine.
type Hooks struct {
	OnPublish func(f *domain.Frame, sample domain.PerformanceSample)
	OnError   func(seq uint64, err error)
}

// Option configures a Stage.
type Option func(*Stage)

// WithDepth sets the in-flight copy limit.
func WithDepth(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.depth = n
		}
	}
}

// WithHooks installs outcome callbacks.
func WithHooks(h Hooks) Option {
	return func(s *Stage) { s.hooks = h }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Stage) { s.now = now }
}

// Stage is the asynchronous readback pipeline.
type Stage struct {
	device   ports.Device
	sink     ports.FramePublisher
	recorder ports.SampleRecorder
	logger   ports.Logger
	hooks    Hooks
	depth    int
	now      func() time.Time

	slots    chan struct{}
	inflight sync.WaitGroup

	fatalOnce sync.Once
	fatal     chan struct{}
	fatalErr  error

	issued    atomic.Uint64
	published atomic.Uint64
	failures  atomic.Uint64
	stale     atomic.Uint64
	skipped   atomic.Uint64
}

// New creates a stage that copies from device and publishes to sink.
// recorder may be nil.
func New(device ports.Device, sink ports.FramePublisher, recorder ports.SampleRecorder, logger ports.Logger, opts ...Option) *Stage {
	s := &Stage{
		device:   device,
		sink:     sink,
		recorder: recorder,
		logger:   logger,
		depth:    DefaultDepth,
		now:      time.Now,
		fatal:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.slots = make(chan struct{}, s.depth)
	return s
}

// Issue starts an asynchronous copy of target tagged seq. It never blocks:
// when Depth copies are already in flight the readback is skipped and
// Issue returns false.
func (s *Stage) Issue(target ports.RenderTarget, seq uint64) bool {
	select {
	case s.slots <- struct{}{}:
	default:
		s.skipped.Add(1)
		s.logger.Debug("readback pipeline full, skipping frame", ports.Uint64("seq", seq))
		return false
	}

	issuedAt := s.now()
	s.inflight.Add(1)
	err := s.device.CopyToHost(target, seq, func(buf ports.MappedBuffer, err error) {
		defer s.release()
		s.complete(seq, issuedAt, buf, err)
	})
	if err != nil {
		s.release()
		s.fail(seq, err)
		return false
	}
	s.issued.Add(1)
	return true
}

func (s *Stage) release() {
	<-s.slots
	s.inflight.Done()
}

func (s *Stage) complete(seq uint64, issuedAt time.Time, buf ports.MappedBuffer, err error) {
	if err != nil {
		s.fail(seq, err)
		return
	}

	mapped := s.now()
	transfer := mapped.Sub(issuedAt)

	pix, err := Normalize(buf)
	if err != nil {
		s.fail(seq, err)
		return
	}
	finished := s.now()
	processing := finished.Sub(mapped)

	frame := &domain.Frame{
		Seq:        seq,
		Width:      buf.Layout.Width,
		Height:     buf.Layout.Height,
		Pix:        pix,
		CapturedAt: finished,
	}
	if !s.sink.Publish(frame) {
		s.stale.Add(1)
		s.logger.Debug("dropping stale readback", ports.Uint64("seq", seq))
		return
	}
	s.published.Add(1)

	sample := domain.PerformanceSample{
		FrameIndex:  seq,
		At:          finished,
		GPUTransfer: transfer,
		Processing:  processing,
		Total:       finished.Sub(issuedAt),
		Bytes:       len(pix),
	}
	if s.recorder != nil {
		s.recorder.RecordCapture(sample)
	}
	if s.hooks.OnPublish != nil {
		s.hooks.OnPublish(frame, sample)
	}
}

// fail handles a copy error. Device loss is latched as fatal; everything
// else is counted and the previously published frame stays current.
func (s *Stage) fail(seq uint64, err error) {
	if errors.Is(err, domain.ErrDeviceLost) {
		s.fatalOnce.Do(func() {
			s.fatalErr = err
			close(s.fatal)
		})
		s.logger.Error("device lost during readback", ports.Uint64("seq", seq), ports.Err(err))
	} else {
		err = fmt.Errorf("%w: %w", domain.ErrCapture, err)
		s.failures.Add(1)
		s.logger.Warn("readback failed, keeping previous frame", ports.Uint64("seq", seq), ports.Err(err))
	}
	if s.hooks.OnError != nil {
		s.hooks.OnError(seq, err)
	}
}

// Fatal is closed once the device has been lost.
func (s *Stage) Fatal() <-chan struct{} {
	return s.fatal
}

// Err returns the fatal error after Fatal is closed.
func (s *Stage) Err() error {
	select {
	case <-s.fatal:
		return s.fatalErr
	default:
		return nil
	}
}

// Drain waits until no copy is in flight or ctx is done.
func (s *Stage) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Counters is a point-in-time view of stage totals.
type Counters struct {
	Issued    uint64
	Published uint64
	Failures  uint64
	Stale     uint64
	Skipped   uint64
}

// Counters returns the stage totals.
func (s *Stage) Counters() Counters {
	return Counters{
		Issued:    s.issued.Load(),
		Published: s.published.Load(),
		Failures:  s.failures.Load(),
		Stale:     s.stale.Load(),
		Skipped:   s.skipped.Load(),
	}
}
