// Package mqttstats publishes bridge performance snapshots to an MQTT
// broker.
package mqttstats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/bft-labs/framecast/pkg/framecast"
	"github.com/bft-labs/framecast/pkg/log"
)

// Config holds configuration options for the MQTT stats plugin.
type Config struct {
	// Broker is host:port or a full URL such as tcp://host:1883.
	Broker string

	// TopicPrefix roots the topics: <prefix>/<instance>/stats and
	// <prefix>/<instance>/status. Default: "framecast"
	TopicPrefix string

	// Interval between snapshot publishes. Default: 2 seconds
	Interval time.Duration

	// QoS for snapshots. Default: 0
	QoS byte

	// Username and Password authenticate with the broker when set.
	Username string
	Password string

	// ConnectTimeout bounds the first connection attempt; the client keeps
	// retrying in the background after it. Default: 5 seconds
	ConnectTimeout time.Duration

	// PublishTimeout bounds each publish. Default: 2 seconds
	PublishTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopicPrefix:    "framecast",
		Interval:       2 * time.Second,
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// Plugin periodically publishes the bridge snapshot as JSON.
type Plugin struct {
	cfg       Config
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu       sync.Mutex
	client   mqtt.Client
	logger   framecast.Logger
	stats    func() framecast.Snapshot
	clientID string
	topic    string
	status   string
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	published atomic.Uint64
	failures  atomic.Uint64
}

// New creates the plugin. Zero config fields take defaults.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = def.TopicPrefix
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	return &Plugin{cfg: cfg, newClient: mqtt.NewClient}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "mqttstats"
}

// Initialize connects to the broker and starts the publish loop. Without a
// broker the plugin stays idle. A slow first connection is not an error:
// the client keeps retrying and snapshots are skipped until it is up.
func (p *Plugin) Initialize(ctx context.Context, cfg framecast.PluginConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	p.logger = log.Component(logger, p.Name())

	if p.cfg.Broker == "" || cfg.Stats == nil {
		p.logger.Warn("mqtt stats disabled: no broker configured")
		return nil
	}

	instance := cfg.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}
	p.stats = cfg.Stats
	p.clientID = "framecast-" + instance
	p.topic = fmt.Sprintf("%s/%s/stats", p.cfg.TopicPrefix, instance)
	p.status = fmt.Sprintf("%s/%s/status", p.cfg.TopicPrefix, instance)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.cfg.Broker))
	opts.SetClientID(p.clientID)
	opts.SetUsername(p.cfg.Username)
	opts.SetPassword(p.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetWill(p.status, "offline", 1, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		p.logger.Info("mqtt connection established",
			log.String("broker", p.cfg.Broker),
			log.String("client_id", p.clientID))
		c.Publish(p.status, 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn("mqtt connection lost, will auto-reconnect", log.Err(err))
	})

	client := p.newClient(opts)
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		p.logger.Warn("mqtt broker not reachable yet, retrying in background",
			log.String("broker", p.cfg.Broker))
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("mqttstats: connect %s: %w", p.cfg.Broker, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(runCtx)
	return nil
}

// Shutdown stops publishing, marks the instance offline and disconnects.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client == nil {
		return nil
	}
	if client.IsConnectionOpen() {
		client.Publish(p.status, 1, true, "offline").WaitTimeout(p.cfg.PublishTimeout)
	}
	client.Disconnect(250)
	return nil
}

func (p *Plugin) run(ctx context.Context) {
	defer p.wg.Done()
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.publish(); err != nil {
				p.failures.Add(1)
				p.logger.Warn("stats publish failed", log.String("topic", p.topic), log.Err(err))
			}
		}
	}
}

func (p *Plugin) publish() error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(p.stats())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	token := client.Publish(p.topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	p.published.Add(1)
	p.logger.Debug("stats published", log.String("topic", p.topic), log.Int("size", len(payload)))
	return nil
}

// Counts returns the number of successful and failed publishes.
func (p *Plugin) Counts() (published, failed uint64) {
	return p.published.Load(), p.failures.Load()
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Ensure Plugin implements framecast.Plugin.
var _ framecast.Plugin = (*Plugin)(nil)
