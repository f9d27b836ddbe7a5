package ports

import "github.com/bft-labs/framecast/internal/domain"

// FrameSource is the read side of the frame exchange.
type FrameSource interface {
	// Latest returns the newest published frame or domain.ErrNotReady.
	Latest() (*domain.Frame, error)
}

// FramePublisher is the write side of the frame exchange.
type FramePublisher interface {
	// Publish stores f unless a newer frame is already published.
	Publish(f *domain.Frame) bool
}

// SampleRecorder receives timing samples from the pipeline stages.
type SampleRecorder interface {
	RecordCapture(s domain.PerformanceSample)
	RecordServe(s domain.PerformanceSample)
}
