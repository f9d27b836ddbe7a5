// Package perf aggregates per-stage frame timings over a rolling window.
package perf

import (
	"sync"
	"time"

	"github.com/zserge/metric"

	"github.com/bft-labs/framecast/internal/domain"
)

// DefaultWindow is the number of samples averaged per stage.
const DefaultWindow = 30

// Metric names exposed through Metrics.
const (
	MetricGPUTransfer = "gpu_transfer_ms"
	MetricProcessing  = "data_processing_ms"
	MetricEncode      = "frame_encoding_ms"
	MetricFrames      = "frames_published"
	MetricServed      = "frames_served"
	MetricFrameSize   = "frame_size_kb"
)

// CounterSource fills counters owned by other components into a snapshot.
type CounterSource func(*domain.PerformanceSnapshot)

// Aggregator collects capture and serve samples. All methods are safe for
// concurrent use.
type Aggregator struct {
	size int

	mu          sync.Mutex
	capture     *window
	serve       *window
	frameCount  uint64
	servedCount uint64
	lastRaw     int
	lastEncoded int
	sources     []CounterSource

	metrics map[string]metric.Metric
}

// New creates an aggregator averaging over the most recent size samples per
// stage. Non-positive sizes use DefaultWindow.
func New(size int) *Aggregator {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Aggregator{
		size:    size,
		capture: newWindow(size),
		serve:   newWindow(size),
		metrics: map[string]metric.Metric{
			MetricGPUTransfer: metric.NewGauge("5m1s", "1h1m"),
			MetricProcessing:  metric.NewGauge("5m1s", "1h1m"),
			MetricEncode:      metric.NewGauge("5m1s", "1h1m"),
			MetricFrameSize:   metric.NewGauge("5m1s"),
			MetricFrames:      metric.NewCounter("5m1s", "1h1m"),
			MetricServed:      metric.NewCounter("5m1s", "1h1m"),
		},
	}
}

// AddSource registers a counter source consulted on every Snapshot.
func (a *Aggregator) AddSource(src CounterSource) {
	a.mu.Lock()
	a.sources = append(a.sources, src)
	a.mu.Unlock()
}

// RecordCapture adds a readback sample. Every capture sample is one
// published frame.
func (a *Aggregator) RecordCapture(s domain.PerformanceSample) {
	if s.At.IsZero() {
		s.At = time.Now()
	}
	a.mu.Lock()
	a.capture.push(s)
	a.frameCount++
	a.lastRaw = s.Bytes
	a.mu.Unlock()

	a.metrics[MetricGPUTransfer].Add(ms(s.GPUTransfer))
	a.metrics[MetricProcessing].Add(ms(s.Processing))
	a.metrics[MetricFrameSize].Add(float64(s.Bytes) / 1024)
	a.metrics[MetricFrames].Add(1)
}

// RecordServe adds a sample from an encoded frame response.
func (a *Aggregator) RecordServe(s domain.PerformanceSample) {
	if s.At.IsZero() {
		s.At = time.Now()
	}
	a.mu.Lock()
	a.serve.push(s)
	a.servedCount++
	a.lastEncoded = s.Bytes
	a.mu.Unlock()

	a.metrics[MetricEncode].Add(ms(s.Encode))
	a.metrics[MetricServed].Add(1)
}

// Snapshot computes averages over a copy of the current windows.
func (a *Aggregator) Snapshot() domain.PerformanceSnapshot {
	a.mu.Lock()
	capture := a.capture.snapshot()
	serve := a.serve.snapshot()
	frames := a.frameCount
	lastRaw, lastEncoded := a.lastRaw, a.lastEncoded
	sources := append([]CounterSource(nil), a.sources...)
	a.mu.Unlock()

	snap := domain.PerformanceSnapshot{
		FrameCount:    frames,
		DataSizeKB:    float64(lastRaw) / 1024,
		EncodedSizeKB: float64(lastEncoded) / 1024,
		Window:        a.size,
	}

	if n := len(capture); n > 0 {
		var transfer, processing, total time.Duration
		for _, s := range capture {
			transfer += s.GPUTransfer
			processing += s.Processing
			total += s.Total
		}
		snap.GPUTransferMS = ms(transfer) / float64(n)
		snap.DataProcessingMS = ms(processing) / float64(n)
		snap.TotalMS = ms(total) / float64(n)
		snap.FPS = fps(capture, snap.TotalMS)
	}

	if n := len(serve); n > 0 {
		var get, enc, ser time.Duration
		for _, s := range serve {
			get += s.GetFrame
			enc += s.Encode
			ser += s.Serialize
		}
		snap.GetFrameMS = ms(get) / float64(n)
		snap.FrameEncodingMS = ms(enc) / float64(n)
		snap.SerializeMS = ms(ser) / float64(n)
	}

	for _, src := range sources {
		src(&snap)
	}
	return snap
}

// Metrics returns the live gauges and counters keyed by name, for
// metric.Handler.
func (a *Aggregator) Metrics() map[string]metric.Metric {
	return a.metrics
}

// fps prefers the wall-clock span of the window. With fewer than two
// samples, or all samples at one instant, it falls back to the mean
// per-frame time.
func fps(samples []domain.PerformanceSample, meanTotalMS float64) float64 {
	if n := len(samples); n >= 2 {
		span := samples[n-1].At.Sub(samples[0].At)
		if span > 0 {
			return float64(n-1) / span.Seconds()
		}
	}
	if meanTotalMS > 0 {
		return 1000 / meanTotalMS
	}
	return 0
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
