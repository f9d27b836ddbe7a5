package app

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/framecast/internal/camera"
	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/input"
	"github.com/bft-labs/framecast/internal/ports"
	"github.com/bft-labs/framecast/internal/ratelimit"
	"github.com/bft-labs/framecast/internal/readback"
)

// Engine defaults.
const (
	DefaultLoopInterval     = 2 * time.Millisecond
	DefaultStatsLogInterval = 2 * time.Second
	DefaultDrainTimeout     = 2 * time.Second
)

// EngineConfig tunes the render loop.
type EngineConfig struct {
	// LoopInterval is the host loop cadence. It should be well below the
	// target frame interval; the limiter decides which iterations tick.
	LoopInterval time.Duration

	// PreRollFrames are rendered without readback after start, letting the
	// scene settle before anything is published.
	PreRollFrames int

	// StatsLogInterval is how often a stats line is logged. 0 disables it.
	StatsLogInterval time.Duration

	// DrainTimeout bounds the wait for in-flight readbacks on stop.
	DrainTimeout time.Duration

	// StartSeq is the sequence number the first tick continues from. A
	// restarted engine must resume past the last published frame or the
	// exchange rejects its frames as stale.
	StartSeq uint64
}

// EngineDeps are the collaborators the engine drives.
type EngineDeps struct {
	Limiter *ratelimit.Limiter
	Relay   *input.Relay
	Orbit   *camera.Orbit
	Scene   ports.Scene
	Device  ports.Device
	Stage   *readback.Stage
	// Stats feeds the periodic stats line. May be nil.
	Stats  func() domain.PerformanceSnapshot
	Logger ports.Logger
}

// Engine runs the render tick: apply input, advance and draw the scene,
// then hand the frame to the readback stage.
type Engine struct {
	cfg EngineConfig
	EngineDeps

	seq      uint64
	rendered int
	lastTick time.Time
}

// NewEngine wires an engine. Zero config fields take defaults.
func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = DefaultLoopInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.PreRollFrames < 0 {
		cfg.PreRollFrames = 0
	}
	return &Engine{cfg: cfg, EngineDeps: deps, seq: cfg.StartSeq}
}

// Run drives ticks until ctx is cancelled or the device is lost. On
// cancellation it waits briefly for in-flight readbacks and returns
// ctx.Err(); on device loss it returns the device error.
func (e *Engine) Run(ctx context.Context) error {
	loop := time.NewTicker(e.cfg.LoopInterval)
	defer loop.Stop()

	var statsC <-chan time.Time
	if e.cfg.StatsLogInterval > 0 && e.Stats != nil {
		st := time.NewTicker(e.cfg.StatsLogInterval)
		defer st.Stop()
		statsC = st.C
	}

	e.Logger.Info("render loop started",
		ports.Duration("frame_interval", e.Limiter.Interval()),
		ports.Int("preroll_frames", e.cfg.PreRollFrames),
	)

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()

		case <-e.Stage.Fatal():
			return e.Stage.Err()

		case <-statsC:
			e.logStats()

		case now := <-loop.C:
			if !e.Limiter.Allow() {
				continue
			}
			if err := e.Tick(now); err != nil {
				return err
			}
		}
	}
}

// Tick runs one render cycle. Only device loss is returned as an error;
// transient problems are logged and the tick is dropped.
func (e *Engine) Tick(now time.Time) error {
	var dt time.Duration
	if !e.lastTick.IsZero() {
		dt = now.Sub(e.lastTick)
	}
	e.lastTick = now

	e.Orbit.Apply(e.Relay.Consume())
	e.Scene.Advance(dt)

	target, err := e.Device.Acquire()
	if err != nil {
		if errors.Is(err, domain.ErrDeviceLost) {
			return err
		}
		e.Logger.Debug("no render target available, dropping tick", ports.Err(err))
		return nil
	}

	e.seq++
	seq := e.seq
	if err := e.Scene.Draw(target, e.Orbit.State(), seq); err != nil {
		e.Logger.Warn("scene draw failed", ports.Uint64("seq", seq), ports.Err(err))
		return nil
	}

	e.rendered++
	if e.rendered <= e.cfg.PreRollFrames {
		return nil
	}
	e.Stage.Issue(target, seq)
	return e.Stage.Err()
}

// Seq returns the sequence number of the most recent tick.
func (e *Engine) Seq() uint64 {
	return e.seq
}

func (e *Engine) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
	defer cancel()
	if err := e.Stage.Drain(ctx); err != nil {
		e.Logger.Warn("readbacks still in flight at shutdown", ports.Err(err))
	}
}

func (e *Engine) logStats() {
	s := e.Stats()
	e.Logger.Info("frame stats",
		ports.Float64("fps", s.FPS),
		ports.Float64("gpu_transfer_ms", s.GPUTransferMS),
		ports.Float64("data_processing_ms", s.DataProcessingMS),
		ports.Float64("frame_encoding_ms", s.FrameEncodingMS),
		ports.Uint64("frame_count", s.FrameCount),
		ports.Float64("data_size_kb", s.DataSizeKB),
	)
}
