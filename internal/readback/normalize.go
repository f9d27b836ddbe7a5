package readback

import (
	"fmt"

	"github.com/bft-labs/framecast/internal/ports"
)

// Normalize converts a mapped buffer into tightly packed RGBA8. Row padding
// is dropped and BGRA8 is swizzled. The result never aliases buf.Data.
func Normalize(buf ports.MappedBuffer) ([]byte, error) {
	l := buf.Layout
	if l.Width <= 0 || l.Height <= 0 {
		return nil, fmt.Errorf("readback: invalid size %dx%d", l.Width, l.Height)
	}
	tight := l.Width * 4
	if l.BytesPerRow < tight {
		return nil, fmt.Errorf("readback: row pitch %d shorter than %d", l.BytesPerRow, tight)
	}
	if need := l.BytesPerRow*(l.Height-1) + tight; len(buf.Data) < need {
		return nil, fmt.Errorf("readback: buffer holds %d bytes, need %d", len(buf.Data), need)
	}

	out := make([]byte, tight*l.Height)
	switch l.Format {
	case ports.FormatRGBA8:
		for y := 0; y < l.Height; y++ {
			copy(out[y*tight:(y+1)*tight], buf.Data[y*l.BytesPerRow:])
		}
	case ports.FormatBGRA8:
		for y := 0; y < l.Height; y++ {
			src := buf.Data[y*l.BytesPerRow : y*l.BytesPerRow+tight]
			dst := out[y*tight : (y+1)*tight]
			for x := 0; x < tight; x += 4 {
				dst[x+0] = src[x+2]
				dst[x+1] = src[x+1]
				dst[x+2] = src[x+0]
				dst[x+3] = src[x+3]
			}
		}
	default:
		return nil, fmt.Errorf("readback: unsupported format %s", l.Format)
	}
	return out, nil
}
