package domain

import (
	"image"
	"time"
)

// Frame is one completed render, normalized to tightly packed RGBA8.
// A Frame is never mutated after it has been published.
type Frame struct {
	// Seq increases by one for every render tick that issued a readback.
	Seq uint64

	Width  int
	Height int

	// Pix holds Width*Height*4 bytes, row-major, no padding.
	Pix []byte

	// CapturedAt is when the readback completed.
	CapturedAt time.Time
}

// Size returns the length of the pixel buffer in bytes.
func (f *Frame) Size() int {
	return len(f.Pix)
}

// Image views the pixels as an *image.RGBA without copying.
// The result must be treated as read-only.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Valid reports whether the pixel buffer matches the declared dimensions.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*4
}
