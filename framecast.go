// Package framecast runs a headless frame bridge until its context ends.
//
// Example usage:
//
//	cfg := framecast.DefaultConfig()
//	cfg.ListenAddr = "127.0.0.1:7878"
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := framecast.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Use pkg/framecast directly for lifecycle control, plugins and events.
package framecast

import (
	"context"
	"errors"
	"fmt"

	bridge "github.com/bft-labs/framecast/pkg/framecast"
)

// Config configures the bridge. Use DefaultConfig() for defaults.
type Config = bridge.Config

// Option configures the bridge.
type Option = bridge.Option

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return bridge.DefaultConfig()
}

// WithLogger sets the logger used by the bridge and its plugins.
func WithLogger(logger bridge.Logger) Option {
	return bridge.WithLogger(logger)
}

// Run starts a bridge and blocks until ctx is cancelled or the bridge
// crashes. A crash is returned as an error; a cancelled ctx is not.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	b, err := bridge.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-b.Done():
		return fmt.Errorf("bridge crashed: %w", b.Err())
	}

	if err := b.Stop(); err != nil && !errors.Is(err, bridge.ErrNotRunning) {
		return fmt.Errorf("stop bridge: %w", err)
	}
	return nil
}
