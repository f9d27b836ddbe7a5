// Package encode compresses frames for delivery to display clients.
package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"github.com/bft-labs/framecast/internal/domain"
)

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 85

// ParseFormat accepts "jpeg", "jpg" and "png" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("encode: unknown format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Options select how a single frame is encoded. Zero values fall back to
// the encoder defaults.
type Options struct {
	Format  Format
	Quality int
	// Scale in (0, 1) downsamples before encoding. 0 and 1 mean full size.
	Scale float64
}

// Encoder turns frames into compressed bytes. Encode may be called from any
// number of goroutines; each call works on its own buffer.
type Encoder struct {
	mu      sync.RWMutex
	format  Format
	quality int

	pool    sync.Pool
	pngEnc  png.Encoder
	encodes func(w *bytes.Buffer, img image.Image, o Options) error
}

// New creates an encoder with the given defaults.
func New(format Format, quality int) (*Encoder, error) {
	e := &Encoder{
		pool:   sync.Pool{New: func() any { return new(bytes.Buffer) }},
		pngEnc: png.Encoder{CompressionLevel: png.BestSpeed},
	}
	e.encodes = e.encodeImage
	if err := e.SetDefaults(format, quality); err != nil {
		return nil, err
	}
	return e, nil
}

// SetDefaults changes the format and quality used when a call does not
// specify them.
func (e *Encoder) SetDefaults(format Format, quality int) error {
	if format == "" {
		format = FormatJPEG
	}
	if format != FormatJPEG && format != FormatPNG {
		return fmt.Errorf("encode: unknown format %q", format)
	}
	if quality == 0 {
		quality = DefaultQuality
	}
	if quality < 1 || quality > 100 {
		return fmt.Errorf("encode: quality %d outside 1..100", quality)
	}
	e.mu.Lock()
	e.format, e.quality = format, quality
	e.mu.Unlock()
	return nil
}

// Defaults returns the current default format and quality.
func (e *Encoder) Defaults() (Format, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.format, e.quality
}

// Resolve fills unset fields of o from the encoder defaults and validates
// the result.
func (e *Encoder) Resolve(o Options) (Options, error) {
	format, quality := e.Defaults()
	if o.Format == "" {
		o.Format = format
	}
	if o.Quality == 0 {
		o.Quality = quality
	}
	if o.Format != FormatJPEG && o.Format != FormatPNG {
		return o, fmt.Errorf("%w: unknown format %q", domain.ErrEncode, o.Format)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return o, fmt.Errorf("%w: quality %d outside 1..100", domain.ErrEncode, o.Quality)
	}
	if o.Scale < 0 || o.Scale > 1 {
		return o, fmt.Errorf("%w: scale %g outside (0, 1]", domain.ErrEncode, o.Scale)
	}
	return o, nil
}

// Encode compresses f. On failure it returns an error wrapping
// domain.ErrEncode and no bytes.
func (e *Encoder) Encode(f *domain.Frame, o Options) ([]byte, Options, error) {
	if !f.Valid() {
		return nil, o, fmt.Errorf("%w: invalid frame", domain.ErrEncode)
	}
	o, err := e.Resolve(o)
	if err != nil {
		return nil, o, err
	}

	var img image.Image = f.Image()
	if o.Scale > 0 && o.Scale < 1 {
		img = downscale(f.Image(), o.Scale)
	}

	buf := e.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer e.pool.Put(buf)

	if err := e.encodes(buf, img, o); err != nil {
		return nil, o, fmt.Errorf("%w: %s: %w", domain.ErrEncode, o.Format, err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, o, nil
}

func (e *Encoder) encodeImage(w *bytes.Buffer, img image.Image, o Options) error {
	switch o.Format {
	case FormatPNG:
		return e.pngEnc.Encode(w, img)
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: o.Quality})
	}
}

// ScaledSize returns the dimensions Encode produces for a w×h frame at
// scale.
func ScaledSize(w, h int, scale float64) (int, int) {
	if scale <= 0 || scale >= 1 {
		return w, h
	}
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}

func downscale(src *image.RGBA, scale float64) *image.RGBA {
	b := src.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), scale)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
