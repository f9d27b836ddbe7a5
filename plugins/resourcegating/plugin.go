// Package resourcegating lowers the bridge's frame rate while the readback
// pipeline cannot keep up, and raises it again once it recovers.
//
// Load is judged from the stats snapshot: the pipeline is overloaded when
// readbacks were skipped since the last check, or when the average capture
// time exceeds Threshold of the frame budget at the current rate.
package resourcegating

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/bft-labs/framecast/pkg/framecast"
	"github.com/bft-labs/framecast/pkg/log"
)

// Config holds configuration options for the resource gating plugin.
type Config struct {
	// MaxFPS is the rate restored when load is low. Required.
	MaxFPS float64

	// MinFPS is the floor. Default: 10
	MinFPS float64

	// Threshold is the fraction of the frame budget above which the rate is
	// lowered. Default: 0.85
	Threshold float64

	// RecoverThreshold is the fraction below which the rate is raised.
	// Default: 0.5
	RecoverThreshold float64

	// Step is the factor applied per adjustment, in (0, 1). Default: 0.8
	Step float64

	// Interval between checks. Default: 1s
	Interval time.Duration
}

// DefaultConfig returns a Config with sensible defaults. MaxFPS is left
// for the caller.
func DefaultConfig() Config {
	return Config{
		MinFPS:           10,
		Threshold:        0.85,
		RecoverThreshold: 0.5,
		Step:             0.8,
		Interval:         time.Second,
	}
}

// Plugin adjusts the target frame rate to the measured load.
type Plugin struct {
	mu sync.Mutex

	cfg Config

	logger  framecast.Logger
	stats   func() framecast.Snapshot
	tuner   framecast.Tuner
	current float64
	skipped uint64

	cancel context.CancelFunc
	done   chan struct{}

	// adjusted is called after every rate change; used by tests.
	adjusted func(fps float64)
}

// New creates a new resource gating plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.MinFPS <= 0 {
		cfg.MinFPS = def.MinFPS
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.RecoverThreshold <= 0 || cfg.RecoverThreshold >= cfg.Threshold {
		cfg.RecoverThreshold = cfg.Threshold * def.RecoverThreshold / def.Threshold
	}
	if cfg.Step <= 0 || cfg.Step >= 1 {
		cfg.Step = def.Step
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &Plugin{cfg: cfg}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "resourcegating"
}

// Initialize starts the check loop. Without MaxFPS, stats or a tuner the
// plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg framecast.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	if p.cfg.MaxFPS <= 0 || cfg.Stats == nil || cfg.Tuner == nil {
		p.logger.Info("resource gating disabled")
		return nil
	}
	if p.cfg.MinFPS > p.cfg.MaxFPS {
		p.cfg.MinFPS = p.cfg.MaxFPS
	}

	p.stats = cfg.Stats
	p.tuner = cfg.Tuner
	p.current = p.cfg.MaxFPS
	p.skipped = cfg.Stats().SkippedReadbacks

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	p.logger.Info("resource gating plugin initialized",
		log.Float64("min_fps", p.cfg.MinFPS),
		log.Float64("max_fps", p.cfg.MaxFPS))
	return nil
}

// Shutdown stops the check loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentFPS returns the rate last applied.
func (p *Plugin) CurrentFPS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Plugin) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check()
		}
	}
}

// check compares one snapshot against the budget and moves the rate one
// step when needed.
func (p *Plugin) check() {
	snap := p.stats()

	p.mu.Lock()
	// The counter restarts with each readback stage.
	var skippedNow uint64
	if snap.SkippedReadbacks >= p.skipped {
		skippedNow = snap.SkippedReadbacks - p.skipped
	}
	p.skipped = snap.SkippedReadbacks
	current := p.current
	p.mu.Unlock()

	if snap.FrameCount == 0 {
		return
	}
	budgetMS := 1000 / current
	load := snap.TotalMS / budgetMS

	next := current
	switch {
	case skippedNow > 0 || load > p.cfg.Threshold:
		next = math.Max(p.cfg.MinFPS, current*p.cfg.Step)
	case load < p.cfg.RecoverThreshold:
		next = math.Min(p.cfg.MaxFPS, current/p.cfg.Step)
	}
	if next == current {
		return
	}

	if err := p.tuner.SetTargetFPS(next); err != nil {
		p.logger.Warn("resource gate: rate change rejected",
			log.Float64("fps", next), log.Err(err))
		return
	}
	p.mu.Lock()
	p.current = next
	hook := p.adjusted
	p.mu.Unlock()

	p.logger.Debug("resource gate: rate adjusted",
		log.Float64("fps", next),
		log.Float64("load", load),
		log.Uint64("skipped_readbacks", skippedNow))
	if hook != nil {
		hook(next)
	}
}

var _ framecast.Plugin = (*Plugin)(nil)
