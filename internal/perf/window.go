package perf

import "github.com/bft-labs/framecast/internal/domain"

// window is a fixed-capacity ring of samples. Once full, each push evicts
// the oldest entry.
type window struct {
	buf  []domain.PerformanceSample
	next int
	full bool
}

func newWindow(size int) *window {
	return &window{buf: make([]domain.PerformanceSample, size)}
}

func (w *window) push(s domain.PerformanceSample) {
	w.buf[w.next] = s
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.buf)
	}
	return w.next
}

// snapshot copies the samples oldest first.
func (w *window) snapshot() []domain.PerformanceSample {
	out := make([]domain.PerformanceSample, 0, w.len())
	if w.full {
		out = append(out, w.buf[w.next:]...)
	}
	return append(out, w.buf[:w.next]...)
}
