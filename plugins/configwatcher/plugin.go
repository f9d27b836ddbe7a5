// Package configwatcher hot-reloads bridge tunables from the config file.
// When the file changes it re-reads target_fps, format and jpeg_quality
// and applies them through the bridge's Tuner.
package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/framecast/pkg/framecast"
	"github.com/bft-labs/framecast/pkg/log"
)

// Plugin watches the bridge config file and applies tunable changes.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	path     string
	tuner    framecast.Tuner
	logger   framecast.Logger
	last     Tunables
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	applied  func(Tunables)
}

// Tunables are the settings that can change without a restart. Zero
// fields are left as they are.
type Tunables struct {
	TargetFPS   float64 `toml:"target_fps"`
	Format      string  `toml:"format"`
	JPEGQuality int     `toml:"jpeg_quality"`
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// DebounceDelay is how long the file must stay quiet before it is
	// re-read. Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching cfg.ConfigPath. Without a config path or a
// tuner the plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg framecast.PluginConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	p.mu.Lock()
	p.path = cfg.ConfigPath
	p.tuner = cfg.Tuner
	p.logger = log.Component(logger, p.Name())
	p.mu.Unlock()

	if p.path == "" || p.tuner == nil {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("configwatcher: create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file rather than
	// write it in place.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("configwatcher: watch %s: %w", filepath.Dir(p.path), err)
	}

	if t, err := p.load(); err == nil {
		p.last = t
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher started", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload re-reads the file and applies whatever changed since the last
// successful apply. A file that does not parse is ignored.
func (p *Plugin) reload() {
	next, err := p.load()
	if err != nil {
		p.logger.Warn("ignoring unreadable config file", log.String("path", p.path), log.Err(err))
		return
	}

	p.mu.Lock()
	prev := p.last
	p.mu.Unlock()

	if next.TargetFPS != 0 && next.TargetFPS != prev.TargetFPS {
		if err := p.tuner.SetTargetFPS(next.TargetFPS); err != nil {
			p.logger.Warn("rejected target_fps", log.Float64("target_fps", next.TargetFPS), log.Err(err))
			next.TargetFPS = prev.TargetFPS
		}
	}
	if next.Format != prev.Format || next.JPEGQuality != prev.JPEGQuality {
		if err := p.tuner.SetEncoding(next.Format, next.JPEGQuality); err != nil {
			p.logger.Warn("rejected encoding settings",
				log.String("format", next.Format),
				log.Int("jpeg_quality", next.JPEGQuality),
				log.Err(err))
			next.Format, next.JPEGQuality = prev.Format, prev.JPEGQuality
		}
	}

	p.mu.Lock()
	p.last = next
	applied := p.applied
	p.mu.Unlock()

	p.logger.Info("config reloaded", log.String("path", p.path))
	if applied != nil {
		applied(next)
	}
}

func (p *Plugin) load() (Tunables, error) {
	var t Tunables
	b, err := os.ReadFile(p.path)
	if err != nil {
		return t, err
	}
	if err := toml.Unmarshal(b, &t); err != nil {
		return t, err
	}
	return t, nil
}

// Ensure Plugin implements framecast.Plugin.
var _ framecast.Plugin = (*Plugin)(nil)
