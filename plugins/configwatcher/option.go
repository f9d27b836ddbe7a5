package configwatcher

import "github.com/bft-labs/framecast/pkg/framecast"

// WithConfigWatcher returns a framecast Option that enables config hot
// reload. The bridge's Config.ConfigPath names the file to watch.
//
// Usage:
//
//	b, err := framecast.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) framecast.Option {
	return framecast.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher enables config hot reload with default settings.
func WithDefaultConfigWatcher() framecast.Option {
	return WithConfigWatcher(DefaultConfig())
}
