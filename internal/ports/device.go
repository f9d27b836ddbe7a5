package ports

import "github.com/gogpu/gg"

// PixelFormat is the byte order of a mapped buffer.
type PixelFormat int

const (
	FormatRGBA8 PixelFormat = iota
	FormatBGRA8
)

// String returns the conventional format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatBGRA8:
		return "bgra8"
	default:
		return "unknown"
	}
}

// Layout describes how pixels are laid out in a mapped buffer.
// BytesPerRow may exceed Width*4 when the device pads rows.
type Layout struct {
	Width       int
	Height      int
	BytesPerRow int
	Format      PixelFormat
}

// MappedBuffer is host-visible memory holding one copied render target.
// Data is owned by the receiver once delivered.
type MappedBuffer struct {
	Seq    uint64
	Layout Layout
	Data   []byte
}

// RenderTarget is an offscreen surface the scene draws into.
type RenderTarget interface {
	Width() int
	Height() int
	// Context is a drawing context bound to the target's pixels.
	Context() *gg.Context
}

// CopyDone receives the outcome of an asynchronous copy. It runs on a
// device goroutine and must not block for long.
type CopyDone func(buf MappedBuffer, err error)

// Device produces render targets and copies them back to host memory.
type Device interface {
	// Acquire returns a target no in-flight copy still references.
	Acquire() (RenderTarget, error)

	// CopyToHost enqueues a copy of target. done is invoked exactly once
	// unless CopyToHost itself returns an error.
	CopyToHost(target RenderTarget, seq uint64, done CopyDone) error

	Close() error
}
