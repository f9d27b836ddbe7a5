// Package device provides a software stand-in for a GPU queue.
//
// Software keeps a small ring of offscreen render targets backed by gg
// pixmaps. CopyToHost behaves like a texture-to-buffer copy followed by a
// buffer map: the copy is queued, performed on a worker goroutine into a
// staging buffer whose rows are padded to 256 bytes in BGRA order, and the
// completion callback fires from that goroutine. Consumers therefore
// exercise the same normalization and completion ordering they would on a
// real adapter.
package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gg"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/ports"
)

// RowAlignment is the copy pitch alignment in bytes.
const RowAlignment = 256

var (
	// ErrNoTarget is returned by Acquire when every target is still
	// referenced by an in-flight copy.
	ErrNoTarget = errors.New("device: no free render target")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("device: closed")

	errForeignTarget = errors.New("device: target not owned by this device")
)

// AlignedBytesPerRow returns the padded row pitch for a BGRA8 copy.
func AlignedBytesPerRow(width int) int {
	return (width*4 + RowAlignment - 1) &^ (RowAlignment - 1)
}

// FaultFunc lets callers inject copy failures by sequence number. Returning
// an error wrapping domain.ErrDeviceLost marks the device lost.
type FaultFunc func(seq uint64) error

// Option configures a Software device.
type Option func(*Software)

// WithTargets sets how many render targets rotate. Default 3.
func WithTargets(n int) Option {
	return func(d *Software) {
		if n > 0 {
			d.targetCount = n
		}
	}
}

// WithFaultFunc installs a fault injector.
func WithFaultFunc(f FaultFunc) Option {
	return func(d *Software) { d.fault = f }
}

// WithTransferLatency delays every copy completion by lat.
func WithTransferLatency(lat time.Duration) Option {
	return func(d *Software) { d.latency = lat }
}

// Software is an in-process ports.Device.
type Software struct {
	width, height int
	rowPitch      int
	targetCount   int
	fault         FaultFunc
	latency       time.Duration
	flush         func(*gg.Context) error

	mu      sync.Mutex
	targets []*target
	next    int
	closed  bool
	queue   chan copyJob

	lost atomic.Bool
	wg   sync.WaitGroup
}

type target struct {
	owner  *Software
	index  int
	busy   bool
	pixmap *gg.Pixmap
	ctx    *gg.Context
}

func (t *target) Width() int           { return t.pixmap.Width() }
func (t *target) Height() int          { return t.pixmap.Height() }
func (t *target) Context() *gg.Context { return t.ctx }

type copyJob struct {
	target *target
	seq    uint64
	done   ports.CopyDone
}

// NewSoftware creates a device rendering at width x height.
func NewSoftware(width, height int, opts ...Option) (*Software, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("device: invalid size %dx%d", width, height)
	}
	d := &Software{
		width:       width,
		height:      height,
		rowPitch:    AlignedBytesPerRow(width),
		targetCount: 3,
		flush:       (*gg.Context).FlushGPU,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.targets = make([]*target, d.targetCount)
	for i := range d.targets {
		pm := gg.NewPixmap(width, height)
		d.targets[i] = &target{
			owner:  d,
			index:  i,
			pixmap: pm,
			ctx:    gg.NewContext(width, height, gg.WithPixmap(pm)),
		}
	}
	d.queue = make(chan copyJob, d.targetCount)

	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Acquire returns the next render target not referenced by a pending copy.
func (d *Software) Acquire() (ports.RenderTarget, error) {
	if d.lost.Load() {
		return nil, domain.ErrDeviceLost
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	for i := 0; i < len(d.targets); i++ {
		t := d.targets[(d.next+i)%len(d.targets)]
		if !t.busy {
			d.next = (t.index + 1) % len(d.targets)
			return t, nil
		}
	}
	return nil, ErrNoTarget
}

// CopyToHost queues a readback of rt. The target stays reserved until the
// copy has been staged.
func (d *Software) CopyToHost(rt ports.RenderTarget, seq uint64, done ports.CopyDone) error {
	if d.lost.Load() {
		return domain.ErrDeviceLost
	}
	t, ok := rt.(*target)
	if !ok || t.owner != d {
		return errForeignTarget
	}
	// Pending GPU draws must land in the pixmap before it is copied.
	if err := d.flush(t.ctx); err != nil {
		return fmt.Errorf("device: flush target %d: %w", t.index, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if t.busy {
		return fmt.Errorf("device: target %d already has a copy in flight", t.index)
	}
	select {
	case d.queue <- copyJob{target: t, seq: seq, done: done}:
		t.busy = true
		return nil
	default:
		return fmt.Errorf("device: copy queue full")
	}
}

// Close stops accepting copies. Queued copies still complete.
func (d *Software) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	for _, t := range d.targets {
		_ = t.ctx.Close()
	}
	return nil
}

// Lost reports whether the device has been lost.
func (d *Software) Lost() bool {
	return d.lost.Load()
}

func (d *Software) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		if d.latency > 0 {
			time.Sleep(d.latency)
		}

		var (
			buf ports.MappedBuffer
			err error
		)
		switch {
		case d.lost.Load():
			err = domain.ErrDeviceLost
		case d.fault != nil:
			err = d.fault(job.seq)
		}
		if err == nil {
			buf = d.stage(job.target, job.seq)
		} else if errors.Is(err, domain.ErrDeviceLost) {
			d.lost.Store(true)
		}

		d.mu.Lock()
		job.target.busy = false
		d.mu.Unlock()

		job.done(buf, err)
	}
}

// stage copies the target into a padded BGRA8 buffer.
func (d *Software) stage(t *target, seq uint64) ports.MappedBuffer {
	src := t.pixmap.Data()
	tight := d.width * 4
	data := make([]byte, d.rowPitch*d.height)
	for y := 0; y < d.height; y++ {
		row := src[y*tight : (y+1)*tight]
		dst := data[y*d.rowPitch : y*d.rowPitch+tight]
		for x := 0; x < tight; x += 4 {
			dst[x+0] = row[x+2]
			dst[x+1] = row[x+1]
			dst[x+2] = row[x+0]
			dst[x+3] = row[x+3]
		}
	}
	return ports.MappedBuffer{
		Seq: seq,
		Layout: ports.Layout{
			Width:       d.width,
			Height:      d.height,
			BytesPerRow: d.rowPitch,
			Format:      ports.FormatBGRA8,
		},
		Data: data,
	}
}
