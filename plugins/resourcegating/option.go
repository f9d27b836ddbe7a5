package resourcegating

import "github.com/bft-labs/framecast/pkg/framecast"

// WithResourceGating returns a framecast Option that lowers the frame rate
// while readbacks fall behind.
//
// Usage:
//
//	b, err := framecast.New(cfg,
//	    resourcegating.WithResourceGating(resourcegating.Config{
//	        MaxFPS: cfg.TargetFPS,
//	        MinFPS: 15,
//	    }),
//	)
func WithResourceGating(cfg Config) framecast.Option {
	return framecast.WithPlugin(New(cfg))
}

// WithDefaultResourceGating enables resource gating between the default
// floor and maxFPS.
func WithDefaultResourceGating(maxFPS float64) framecast.Option {
	cfg := DefaultConfig()
	cfg.MaxFPS = maxFPS
	return WithResourceGating(cfg)
}
