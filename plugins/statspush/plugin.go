// Package statspush posts bridge performance snapshots to an HTTP
// collector.
package statspush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/bft-labs/framecast/pkg/framecast"
	"github.com/bft-labs/framecast/pkg/log"
)

// Config holds configuration options for the stats push plugin.
type Config struct {
	// URL receives a JSON POST per interval.
	URL string

	// AuthKey is sent as a bearer token when set.
	AuthKey string

	// Interval between pushes. Default: 5 seconds
	Interval time.Duration

	// MaxRetries bounds the retries of one push before it is dropped.
	// Default: 3
	MaxRetries int

	// HTTPTimeout bounds each request. Default: 10 seconds
	HTTPTimeout time.Duration

	// RetryInitial and RetryMax bound the backoff between retries.
	// Defaults: 500 milliseconds and 10 seconds
	RetryInitial time.Duration
	RetryMax     time.Duration

	// Client overrides the HTTP client.
	Client framecast.HTTPClient
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Second,
		MaxRetries:   3,
		HTTPTimeout:  10 * time.Second,
		RetryInitial: 500 * time.Millisecond,
		RetryMax:     10 * time.Second,
	}
}

// Plugin pushes snapshots until the bridge stops.
type Plugin struct {
	cfg Config

	logger   framecast.Logger
	stats    func() framecast.Snapshot
	instance string
	hostname string
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	sent    uint64
	dropped uint64
}

// New creates the plugin. Zero config fields take defaults.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Plugin{cfg: cfg}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "statspush"
}

// Initialize starts the push loop. Without a URL the plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg framecast.PluginConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	p.logger = log.Component(logger, p.Name())

	if p.cfg.URL == "" || cfg.Stats == nil {
		p.logger.Warn("stats push disabled: no URL configured")
		return nil
	}
	p.stats = cfg.Stats
	p.instance = cfg.InstanceID
	p.hostname = hostname()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(runCtx)

	p.logger.Info("stats push started", log.String("url", p.cfg.URL), log.Duration("interval", p.cfg.Interval))
	return nil
}

// Shutdown stops the push loop, abandoning any retry in progress.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) run(ctx context.Context) {
	defer p.wg.Done()

	backoff := framecast.NewBackoff(p.cfg.RetryInitial, p.cfg.RetryMax)
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.pushWithRetry(ctx, backoff)
		}
	}
}

// pushWithRetry sends one snapshot, retrying with backoff. The snapshot
// is taken once so retries carry the same payload.
func (p *Plugin) pushWithRetry(ctx context.Context, backoff *framecast.Backoff) {
	payload, err := json.Marshal(p.stats())
	if err != nil {
		p.logger.Error("marshal snapshot failed", log.Err(err))
		return
	}

	for attempt := 0; ; attempt++ {
		err := p.send(ctx, payload)
		if err == nil {
			backoff.Reset()
			p.mu.Lock()
			p.sent++
			p.mu.Unlock()
			if attempt > 0 {
				p.logger.Info("stats pushed after retries", log.Int("retries", attempt))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt >= p.cfg.MaxRetries {
			p.mu.Lock()
			p.dropped++
			p.mu.Unlock()
			p.logger.Warn("dropping stats push", log.Int("attempts", attempt+1), log.Err(err))
			return
		}
		p.logger.Debug("stats push failed, backing off",
			log.Err(err),
			log.Duration("backoff", backoff.Current()))
		if backoff.Wait(ctx) != nil {
			return
		}
	}
}

func (p *Plugin) send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.AuthKey)
	}
	req.Header.Set("X-Framecast-Instance", p.instance)
	req.Header.Set("X-Agent-Hostname", p.hostname)
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Counts returns how many pushes succeeded and how many were dropped
// after exhausting retries.
func (p *Plugin) Counts() (sent, dropped uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent, p.dropped
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

// Ensure Plugin implements framecast.Plugin.
var _ framecast.Plugin = (*Plugin)(nil)
