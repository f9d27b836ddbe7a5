package framecast

import (
	"context"
	"fmt"
)

// Tuner changes bridge settings while it runs.
type Tuner interface {
	SetTargetFPS(fps float64) error
	SetEncoding(format string, quality int) error
}

// PluginConfig is what a plugin gets at initialization.
type PluginConfig struct {
	Logger     Logger
	InstanceID string
	// ConfigPath is the bridge's config file, if any.
	ConfigPath string
	// Stats returns the current performance snapshot.
	Stats func() Snapshot
	Tuner Tuner
}

// Plugin extends a Bridge. Plugins are initialized in registration order
// when the bridge starts and shut down in reverse order when it stops.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// BasePlugin implements Plugin with no-ops. Embed it and override what
// you need.
type BasePlugin struct {
	name string
}

// NewBasePlugin creates a BasePlugin called name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

func (p BasePlugin) Name() string                                   { return p.name }
func (p BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (p BasePlugin) Shutdown(context.Context) error                 { return nil }

// initPlugin runs p.Initialize, turning a panic into an error.
func initPlugin(ctx context.Context, p Plugin, cfg PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during initialization: %v", p.Name(), r)
		}
	}()
	return p.Initialize(ctx, cfg)
}

// shutdownPlugin runs p.Shutdown, turning a panic into an error.
func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during shutdown: %v", p.Name(), r)
		}
	}()
	return p.Shutdown(ctx)
}
