package framecast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bft-labs/framecast/internal/app"
	"github.com/bft-labs/framecast/internal/camera"
	"github.com/bft-labs/framecast/internal/device"
	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/encode"
	"github.com/bft-labs/framecast/internal/exchange"
	"github.com/bft-labs/framecast/internal/input"
	"github.com/bft-labs/framecast/internal/perf"
	"github.com/bft-labs/framecast/internal/ports"
	"github.com/bft-labs/framecast/internal/ratelimit"
	"github.com/bft-labs/framecast/internal/readback"
	"github.com/bft-labs/framecast/internal/render"
	"github.com/bft-labs/framecast/internal/server"
)

// Bridge renders frames headlessly and serves the latest one over HTTP.
// Use New to create one, then Start.
type Bridge struct {
	config     Config
	opts       options
	instanceID string
	logger     ports.Logger
	emitter    *eventEmitterWrapper
	lifecycle  *app.Lifecycle

	limiter *ratelimit.Limiter
	relay   *input.Relay
	orbit   *camera.Orbit
	frames  *exchange.Exchange
	stats   *perf.Aggregator
	encoder *encode.Encoder
	scene   ports.Scene
	server  *server.Server
	stage   atomic.Pointer[readback.Stage]
	plugins []Plugin

	mu       sync.RWMutex
	cancel   context.CancelFunc
	listener net.Listener
	device   ports.Device
	owned    bool
	done     chan struct{}
	runErr   error
	teardown *sync.Once
}

// New creates a Bridge in StateStopped. It returns an error wrapping
// ErrInvalidConfig when cfg is invalid.
func New(cfg Config, opts ...Option) (*Bridge, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = ports.NoopLogger{}
	}

	format, _ := encode.ParseFormat(cfg.Format)
	enc, err := encode.New(format, cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	limiter, err := ratelimit.New(cfg.TargetFPS)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	settings := camera.DefaultSettings()
	scene := o.scene
	if scene == nil {
		var sceneOpts []render.Option
		if cfg.DisableHUD {
			sceneOpts = append(sceneOpts, render.WithoutHUD())
		}
		s, err := render.NewScene(settings, sceneOpts...)
		if err != nil {
			return nil, fmt.Errorf("create scene: %w", err)
		}
		scene = s
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	b := &Bridge{
		config:     cfg,
		opts:       o,
		instanceID: uuid.NewString(),
		logger:     logger,
		emitter:    emitter,
		lifecycle:  app.NewLifecycle(logger, emitter),
		limiter:    limiter,
		relay:      input.NewRelay(),
		orbit:      camera.NewOrbit(settings),
		frames:     exchange.New(),
		stats:      perf.New(cfg.SampleWindow),
		encoder:    enc,
		scene:      scene,
		plugins:    o.plugins,
	}
	b.stats.AddSource(b.counters)
	b.server = server.New(server.Deps{
		Frames:   b.frames,
		Encoder:  b.encoder,
		Input:    b.relay,
		Recorder: b.stats,
		Stats:    b.stats.Snapshot,
		Metrics:  b.stats.Metrics,
		Status:   func() string { return b.Status().String() },
		Width:    cfg.Width,
		Height:   cfg.Height,
		Logger:   logger,
	})
	return b, nil
}

// Start begins rendering and serving in the background. It returns once
// the listener is bound and every plugin has initialized.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := b.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	ln := b.opts.listener
	b.opts.listener = nil
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", b.config.ListenAddr)
		if err != nil {
			_ = b.lifecycle.TransitionTo(app.StateCrashed, "listen failed")
			return fmt.Errorf("listen on %s: %w", b.config.ListenAddr, err)
		}
	}

	dev, owned, err := b.openDevice()
	if err != nil {
		_ = ln.Close()
		_ = b.lifecycle.TransitionTo(app.StateCrashed, "device init failed")
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.lifecycle.SetCancel(cancel)
	b.listener = ln
	b.device, b.owned = dev, owned
	b.done = make(chan struct{})
	b.runErr = nil
	b.teardown = new(sync.Once)

	stage := readback.New(dev, b.frames, b.stats, b.logger,
		readback.WithDepth(b.config.ReadbackDepth),
		readback.WithHooks(readback.Hooks{
			OnPublish: b.emitter.onPublish,
			OnError:   b.emitter.onError,
		}),
	)
	b.stage.Store(stage)

	pluginCfg := PluginConfig{
		Logger:     b.logger,
		InstanceID: b.instanceID,
		ConfigPath: b.config.ConfigPath,
		Stats:      b.Stats,
		Tuner:      b,
	}
	for i, p := range b.plugins {
		if err := initPlugin(runCtx, p, pluginCfg); err != nil {
			b.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			b.shutdownPlugins(b.plugins[:i])
			_ = ln.Close()
			if owned {
				_ = dev.Close()
			}
			b.device, b.owned = nil, false
			close(b.done)
			_ = b.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		b.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	engine := app.NewEngine(app.EngineConfig{
		LoopInterval:     b.config.LoopInterval,
		PreRollFrames:    b.config.PreRollFrames,
		StatsLogInterval: b.config.StatsLogInterval,
		StartSeq:         b.lastSeq(),
	}, app.EngineDeps{
		Limiter: b.limiter,
		Relay:   b.relay,
		Orbit:   b.orbit,
		Scene:   b.scene,
		Device:  dev,
		Stage:   stage,
		Stats:   b.stats.Snapshot,
		Logger:  ports.Component(b.logger, "engine"),
	})

	b.lifecycle.AddWorker()
	go func() {
		defer b.lifecycle.WorkerDone()
		if err := b.server.Serve(runCtx, ln); err != nil {
			b.logger.Error("http server failed", ports.Err(err))
			b.crash(err)
		}
	}()

	b.lifecycle.AddWorker()
	go func() {
		defer b.lifecycle.WorkerDone()

		if err := b.lifecycle.TransitionTo(app.StateRunning, "engine starting"); err != nil {
			b.logger.Error("failed to transition to running", ports.Err(err))
			return
		}

		err := engine.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("render engine stopped", ports.Err(err))
			b.crash(err)
		}
	}()

	return nil
}

// lastSeq is the sequence of the frame held from a previous run, or 0.
func (b *Bridge) lastSeq() uint64 {
	if f, err := b.frames.Latest(); err == nil {
		return f.Seq
	}
	return 0
}

// crash moves the bridge to StateCrashed and releases what Start acquired.
func (b *Bridge) crash(err error) {
	b.mu.Lock()
	if b.runErr == nil {
		b.runErr = err
	}
	cancel := b.cancel
	b.mu.Unlock()

	if tErr := b.lifecycle.TransitionTo(app.StateCrashed, err.Error()); tErr != nil {
		// Already stopping; Stop finishes the teardown.
		return
	}
	if cancel != nil {
		cancel()
	}
	b.finish()
}

// Stop shuts the bridge down: the engine drains its readbacks, the HTTP
// server stops, then plugins shut down in reverse order. It returns
// ErrShutdownTimeout if workers outlive Config.ShutdownTimeout.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.lifecycle.CanStop() {
		b.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := b.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		b.mu.Unlock()
		return err
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()

	err := b.lifecycle.WaitWithTimeout(b.config.ShutdownTimeout)
	b.finish()

	if err != nil {
		_ = b.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = b.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// finish shuts down plugins and the owned device once per run.
func (b *Bridge) finish() {
	b.mu.RLock()
	done, once := b.done, b.teardown
	b.mu.RUnlock()
	if once == nil {
		return
	}

	once.Do(func() {
		b.shutdownPlugins(b.plugins)
		b.closeDevice()
		if done != nil {
			close(done)
		}
	})
}

func (b *Bridge) shutdownPlugins(plugins []Plugin) {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.ShutdownTimeout)
	defer cancel()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := shutdownPlugin(ctx, p); err != nil {
			b.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			b.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}

func (b *Bridge) openDevice() (ports.Device, bool, error) {
	if b.opts.device != nil {
		return b.opts.device, false, nil
	}
	// One target more than the readback depth keeps a target free to draw
	// into while every slot is in flight.
	d, err := device.NewSoftware(b.config.Width, b.config.Height,
		device.WithTargets(b.config.ReadbackDepth+1))
	if err != nil {
		return nil, false, fmt.Errorf("create device: %w", err)
	}
	return d, true, nil
}

func (b *Bridge) closeDevice() {
	b.mu.Lock()
	dev, owned := b.device, b.owned
	b.device, b.owned = nil, false
	b.mu.Unlock()
	if owned && dev != nil {
		if err := dev.Close(); err != nil {
			b.logger.Warn("device close failed", ports.Err(err))
		}
	}
}

// counters adds the totals owned by other components to a snapshot.
func (b *Bridge) counters(s *domain.PerformanceSnapshot) {
	if st := b.stage.Load(); st != nil {
		c := st.Counters()
		s.CaptureFailures = c.Failures
		s.StaleFrames = c.Stale
		s.SkippedReadbacks = c.Skipped
	}
	s.TicksExecuted, s.TicksSkipped = b.limiter.Counts()
	s.InputEvents, s.InputRejected = b.relay.Counts()
}

// Status returns the current lifecycle state.
func (b *Bridge) Status() State {
	return convertState(b.lifecycle.State())
}

// Done is closed when the current run ends, through Stop or a crash. It
// is nil before the first Start.
func (b *Bridge) Done() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.done
}

// Err returns the error that crashed the current run, if any.
func (b *Bridge) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.runErr
}

// InstanceID identifies this bridge to plugins and remote sinks.
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Handler returns the HTTP handler, for mounting in another server.
func (b *Bridge) Handler() http.Handler {
	return b.server.Handler()
}

// Addr returns the bound listen address while running, or the configured
// address otherwise.
func (b *Bridge) Addr() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.listener != nil && b.Status() != StateStopped {
		return b.listener.Addr().String()
	}
	return b.config.ListenAddr
}

// Config returns the configuration the bridge was created with.
func (b *Bridge) Config() Config {
	return b.config
}

// Stats returns the current performance snapshot.
func (b *Bridge) Stats() Snapshot {
	return b.stats.Snapshot()
}

// LatestFrame returns the newest published frame, or ErrNotReady.
func (b *Bridge) LatestFrame() (*Frame, error) {
	return b.frames.Latest()
}

// SubmitInput queues an input event for the next render tick.
func (b *Bridge) SubmitInput(ev InputEvent) error {
	return b.relay.Submit(ev)
}

// SetTargetFPS changes the render rate cap.
func (b *Bridge) SetTargetFPS(fps float64) error {
	if err := b.limiter.SetTarget(fps); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	b.logger.Info("target fps changed", ports.Float64("fps", fps))
	return nil
}

// SetEncoding changes the default frame format and quality. An empty
// format or zero quality keeps the current value.
func (b *Bridge) SetEncoding(format string, quality int) error {
	f, q := b.encoder.Defaults()
	if format != "" {
		parsed, err := encode.ParseFormat(format)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
		}
		f = parsed
	}
	if quality != 0 {
		q = quality
	}
	if err := b.encoder.SetDefaults(f, q); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	b.logger.Info("encoding changed", ports.String("format", string(f)), ports.Int("quality", q))
	return nil
}
