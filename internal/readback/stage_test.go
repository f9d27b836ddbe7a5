package readback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/exchange"
	"github.com/bft-labs/framecast/internal/ports"
	"github.com/bft-labs/framecast/pkg/log"
)

// manualDevice holds copies until the test completes them, in any order.
type manualDevice struct {
	mu      sync.Mutex
	w, h    int
	pending map[uint64]ports.CopyDone
	copyErr error
}

type stubTarget struct{ w, h int }

func (s stubTarget) Width() int           { return s.w }
func (s stubTarget) Height() int          { return s.h }
func (s stubTarget) Context() *gg.Context { return nil }

func newManualDevice(w, h int) *manualDevice {
	return &manualDevice{w: w, h: h, pending: map[uint64]ports.CopyDone{}}
}

func (d *manualDevice) Acquire() (ports.RenderTarget, error) { return stubTarget{d.w, d.h}, nil }
func (d *manualDevice) Close() error                         { return nil }

func (d *manualDevice) CopyToHost(_ ports.RenderTarget, seq uint64, done ports.CopyDone) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.copyErr != nil {
		return d.copyErr
	}
	d.pending[seq] = done
	return nil
}

// complete finishes the copy for seq with a buffer filled with fill, or
// with err.
func (d *manualDevice) complete(seq uint64, fill byte, err error) {
	d.mu.Lock()
	done := d.pending[seq]
	delete(d.pending, seq)
	d.mu.Unlock()

	if err != nil {
		done(ports.MappedBuffer{}, err)
		return
	}
	pitch := 256
	data := make([]byte, pitch*d.h)
	for i := range data {
		data[i] = fill
	}
	done(ports.MappedBuffer{
		Seq:    seq,
		Layout: ports.Layout{Width: d.w, Height: d.h, BytesPerRow: pitch, Format: ports.FormatBGRA8},
		Data:   data,
	}, nil)
}

type captureRecorder struct {
	mu      sync.Mutex
	samples []domain.PerformanceSample
}

func (r *captureRecorder) RecordCapture(s domain.PerformanceSample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}
func (r *captureRecorder) RecordServe(domain.PerformanceSample) {}

func newStage(t *testing.T, depth int) (*Stage, *manualDevice, *exchange.Exchange, *captureRecorder) {
	t.Helper()
	dev := newManualDevice(4, 2)
	ex := exchange.New()
	rec := &captureRecorder{}
	s := New(dev, ex, rec, log.NewNoopLogger(), WithDepth(depth))
	return s, dev, ex, rec
}

func TestIssue_PublishesNormalizedFrame(t *testing.T) {
	s, dev, ex, rec := newStage(t, 2)

	require.True(t, s.Issue(stubTarget{4, 2}, 1))
	_, err := ex.Latest()
	assert.ErrorIs(t, err, domain.ErrNotReady, "nothing published before completion")

	dev.complete(1, 0x40, nil)

	f, err := ex.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Len(t, f.Pix, 4*2*4)

	require.Len(t, rec.samples, 1)
	assert.Equal(t, uint64(1), rec.samples[0].FrameIndex)
	assert.Equal(t, 32, rec.samples[0].Bytes)
	assert.Equal(t, uint64(1), s.Counters().Published)
}

func TestIssue_SkipsWhenPipelineFull(t *testing.T) {
	s, dev, _, _ := newStage(t, 2)

	assert.True(t, s.Issue(stubTarget{4, 2}, 1))
	assert.True(t, s.Issue(stubTarget{4, 2}, 2))
	assert.False(t, s.Issue(stubTarget{4, 2}, 3))
	assert.Equal(t, uint64(1), s.Counters().Skipped)

	dev.complete(1, 0, nil)
	assert.True(t, s.Issue(stubTarget{4, 2}, 4))
}

func TestComplete_OutOfOrderNeverOverwritesNewer(t *testing.T) {
	s, dev, ex, rec := newStage(t, 2)

	require.True(t, s.Issue(stubTarget{4, 2}, 1))
	require.True(t, s.Issue(stubTarget{4, 2}, 2))

	dev.complete(2, 0x22, nil)
	dev.complete(1, 0x11, nil)

	f, err := ex.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)
	assert.Equal(t, byte(0x22), f.Pix[0])
	assert.Equal(t, uint64(1), s.Counters().Stale)
	assert.Len(t, rec.samples, 1)
}

func TestComplete_TransientFailureKeepsPreviousFrame(t *testing.T) {
	var hookErr error
	dev := newManualDevice(4, 2)
	ex := exchange.New()
	s := New(dev, ex, nil, log.NewNoopLogger(), WithHooks(Hooks{
		OnError: func(_ uint64, err error) { hookErr = err },
	}))

	require.True(t, s.Issue(stubTarget{4, 2}, 1))
	dev.complete(1, 0x33, nil)

	require.True(t, s.Issue(stubTarget{4, 2}, 2))
	dev.complete(2, 0, fmt.Errorf("map failed"))

	f, err := ex.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	assert.ErrorIs(t, hookErr, domain.ErrCapture)
	assert.Equal(t, uint64(1), s.Counters().Failures)
	assert.Nil(t, s.Err())

	// The pipeline slot was released; rendering continues.
	assert.True(t, s.Issue(stubTarget{4, 2}, 3))
}

func TestIssue_SubmitErrorReleasesSlot(t *testing.T) {
	s, dev, _, _ := newStage(t, 1)
	dev.copyErr = errors.New("queue full")

	assert.False(t, s.Issue(stubTarget{4, 2}, 1))
	assert.Equal(t, uint64(1), s.Counters().Failures)

	dev.copyErr = nil
	assert.True(t, s.Issue(stubTarget{4, 2}, 2))
}

func TestComplete_DeviceLostIsFatal(t *testing.T) {
	s, dev, _, _ := newStage(t, 2)

	require.True(t, s.Issue(stubTarget{4, 2}, 1))
	dev.complete(1, 0, fmt.Errorf("reset: %w", domain.ErrDeviceLost))

	select {
	case <-s.Fatal():
	default:
		t.Fatal("fatal channel not closed")
	}
	assert.ErrorIs(t, s.Err(), domain.ErrDeviceLost)
	assert.Equal(t, uint64(0), s.Counters().Failures)
}

func TestDrain(t *testing.T) {
	s, dev, _, _ := newStage(t, 2)
	require.True(t, s.Issue(stubTarget{4, 2}, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Drain(ctx), context.DeadlineExceeded)

	dev.complete(1, 0, nil)
	assert.NoError(t, s.Drain(context.Background()))
}
