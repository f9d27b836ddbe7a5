package domain

import "time"

// PerformanceSample is the timing of one frame through one stage. Fields a
// stage does not measure are left zero.
type PerformanceSample struct {
	FrameIndex uint64
	At         time.Time

	// Capture stage.
	GPUTransfer time.Duration
	Processing  time.Duration
	Total       time.Duration

	// Serve stage.
	GetFrame  time.Duration
	Encode    time.Duration
	Serialize time.Duration

	// Bytes is the raw frame size for capture samples and the encoded
	// payload size for serve samples.
	Bytes int
}

// PerformanceSnapshot is the aggregated view served by the stats call.
type PerformanceSnapshot struct {
	GPUTransferMS    float64 `json:"gpu_transfer_ms" msgpack:"gpu_transfer_ms"`
	DataProcessingMS float64 `json:"data_processing_ms" msgpack:"data_processing_ms"`
	FrameEncodingMS  float64 `json:"frame_encoding_ms" msgpack:"frame_encoding_ms"`
	FPS              float64 `json:"fps" msgpack:"fps"`
	FrameCount       uint64  `json:"frame_count" msgpack:"frame_count"`
	DataSizeKB       float64 `json:"data_size_kb" msgpack:"data_size_kb"`
	GetFrameMS       float64 `json:"get_frame_ms" msgpack:"get_frame_ms"`
	SerializeMS      float64 `json:"serialize_ms" msgpack:"serialize_ms"`

	TotalMS          float64 `json:"total_ms" msgpack:"total_ms"`
	EncodedSizeKB    float64 `json:"encoded_size_kb" msgpack:"encoded_size_kb"`
	Window           int     `json:"window" msgpack:"window"`
	CaptureFailures  uint64  `json:"capture_failures" msgpack:"capture_failures"`
	StaleFrames      uint64  `json:"stale_frames" msgpack:"stale_frames"`
	SkippedReadbacks uint64  `json:"skipped_readbacks" msgpack:"skipped_readbacks"`
	TicksExecuted    uint64  `json:"ticks_executed" msgpack:"ticks_executed"`
	TicksSkipped     uint64  `json:"ticks_skipped" msgpack:"ticks_skipped"`
	InputEvents      uint64  `json:"input_events" msgpack:"input_events"`
	InputRejected    uint64  `json:"input_rejected" msgpack:"input_rejected"`
}
