package framecast

import (
	"net"

	"github.com/bft-labs/framecast/internal/ports"
	"github.com/bft-labs/framecast/pkg/log"
)

// Logger is the structured logger accepted by the bridge.
type Logger = log.Logger

// LogField is a structured log field.
type LogField = log.Field

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Device is a render device the bridge draws into and reads back from.
type Device = ports.Device

// Scene draws one frame into a render target.
type Scene = ports.Scene

// Option configures optional behavior of a Bridge.
type Option func(*options)

type options struct {
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	device       Device
	scene        Scene
	listener     net.Listener
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for bridge events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin. Plugins are initialized in registration
// order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithDevice injects the render device. The bridge does not close an
// injected device. By default a software device sized from Config is
// created on every Start.
func WithDevice(d Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithScene replaces the built-in scene.
func WithScene(s Scene) Option {
	return func(o *options) {
		o.scene = s
	}
}

// WithListener serves HTTP on ln instead of listening on
// Config.ListenAddr. The listener is used for a single Start.
func WithListener(ln net.Listener) Option {
	return func(o *options) {
		o.listener = ln
	}
}
