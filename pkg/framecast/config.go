package framecast

import (
	"fmt"
	"time"

	"github.com/bft-labs/framecast/internal/app"
	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/encode"
	"github.com/bft-labs/framecast/internal/perf"
	"github.com/bft-labs/framecast/internal/readback"
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultWidth         = 800
	DefaultHeight        = 600
	DefaultTargetFPS     = 60.0
	DefaultListenAddr    = "127.0.0.1:7878"
	DefaultFormat        = "jpeg"
	DefaultQuality       = encode.DefaultQuality
	DefaultSampleWindow  = perf.DefaultWindow
	DefaultReadbackDepth = readback.DefaultDepth

	maxDimension = 8192
	maxFPS       = 1000
	maxDepth     = 8
)

// Config configures a Bridge.
type Config struct {
	// Width and Height are the render resolution in pixels.
	Width  int
	Height int

	// TargetFPS caps the render tick rate.
	TargetFPS float64

	// ListenAddr is the HTTP listen address. Ignored when WithListener is
	// used.
	ListenAddr string

	// Format ("jpeg" or "png") and Quality (1..100, JPEG only) are the
	// encoding defaults for frame requests that do not specify them.
	Format  string
	Quality int

	// PreRollFrames are rendered before the first readback is issued.
	PreRollFrames int

	// ReadbackDepth bounds the number of readbacks in flight.
	ReadbackDepth int

	// SampleWindow is the number of recent samples averaged in stats.
	SampleWindow int

	// LoopInterval is the host loop cadence; it should be well below
	// 1/TargetFPS.
	LoopInterval time.Duration

	// StatsLogInterval is how often a stats line is logged. 0 disables it.
	StatsLogInterval time.Duration

	// ShutdownTimeout bounds Stop.
	ShutdownTimeout time.Duration

	// DisableHUD turns off the frame counter overlay of the built-in scene.
	DisableHUD bool

	// ConfigPath is the config file handed to plugins for hot reload.
	ConfigPath string
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero fields with defaults.
func (c *Config) SetDefaults() {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.TargetFPS == 0 {
		c.TargetFPS = DefaultTargetFPS
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.Quality == 0 {
		c.Quality = DefaultQuality
	}
	if c.ReadbackDepth == 0 {
		c.ReadbackDepth = DefaultReadbackDepth
	}
	if c.SampleWindow == 0 {
		c.SampleWindow = DefaultSampleWindow
	}
	if c.LoopInterval == 0 {
		c.LoopInterval = app.DefaultLoopInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = app.ShutdownTimeout
	}
}

// Validate reports the first invalid field. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Width > maxDimension:
		return invalid("width %d outside 1..%d", c.Width, maxDimension)
	case c.Height <= 0 || c.Height > maxDimension:
		return invalid("height %d outside 1..%d", c.Height, maxDimension)
	case !(c.TargetFPS > 0) || c.TargetFPS > maxFPS:
		return invalid("target fps %g outside (0, %d]", c.TargetFPS, maxFPS)
	case c.Quality < 1 || c.Quality > 100:
		return invalid("quality %d outside 1..100", c.Quality)
	case c.PreRollFrames < 0:
		return invalid("preroll frames must not be negative")
	case c.ReadbackDepth < 1 || c.ReadbackDepth > maxDepth:
		return invalid("readback depth %d outside 1..%d", c.ReadbackDepth, maxDepth)
	case c.SampleWindow < 1:
		return invalid("sample window must be positive")
	case c.LoopInterval < 0 || c.StatsLogInterval < 0 || c.ShutdownTimeout < 0:
		return invalid("intervals must not be negative")
	}
	if _, err := encode.ParseFormat(c.Format); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
