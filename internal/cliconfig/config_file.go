package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// target_fps, format and jpeg_quality are also the keys the config watcher
// reloads while running.
type FileConfig struct {
	ListenAddr       string  `toml:"listen"`
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	TargetFPS        float64 `toml:"target_fps"`
	MinFPS           float64 `toml:"min_fps"`
	Format           string  `toml:"format"`
	Quality          int     `toml:"jpeg_quality"`
	PreRollFrames    int     `toml:"preroll_frames"`
	ReadbackDepth    int     `toml:"readback_depth"`
	SampleWindow     int     `toml:"sample_window"`
	LoopInterval     string  `toml:"loop_interval"`
	StatsLogInterval string  `toml:"stats_interval"`
	LogLevel         string  `toml:"log_level"`
	NoHUD            *bool   `toml:"no_hud"`

	MQTT struct {
		Broker   string `toml:"broker"`
		Topic    string `toml:"topic"`
		Interval string `toml:"interval"`
	} `toml:"mqtt"`

	Push struct {
		URL      string `toml:"url"`
		AuthKey  string `toml:"auth_key"`
		Interval string `toml:"interval"`
	} `toml:"push"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.framecast/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".framecast", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("format", fc.Format, &cfg.Format)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("mqtt-broker", fc.MQTT.Broker, &cfg.MQTTBroker)
	s.setString("mqtt-topic", fc.MQTT.Topic, &cfg.MQTTTopic)
	s.setString("push-url", fc.Push.URL, &cfg.PushURL)
	s.setString("push-key", fc.Push.AuthKey, &cfg.PushKey)

	s.setInt("width", fc.Width, &cfg.Width)
	s.setInt("height", fc.Height, &cfg.Height)
	s.setInt("quality", fc.Quality, &cfg.Quality)
	s.setInt("preroll", fc.PreRollFrames, &cfg.PreRollFrames)
	s.setInt("readback-depth", fc.ReadbackDepth, &cfg.ReadbackDepth)
	s.setInt("window", fc.SampleWindow, &cfg.SampleWindow)

	s.setFloat("fps", fc.TargetFPS, &cfg.TargetFPS)
	s.setFloat("min-fps", fc.MinFPS, &cfg.MinFPS)

	if err := s.setDuration("loop-interval", fc.LoopInterval, &cfg.LoopInterval); err != nil {
		return err
	}
	if err := s.setDuration("stats-interval", fc.StatsLogInterval, &cfg.StatsLogInterval); err != nil {
		return err
	}
	if err := s.setDuration("mqtt-interval", fc.MQTT.Interval, &cfg.MQTTInterval); err != nil {
		return err
	}
	if err := s.setDuration("push-interval", fc.Push.Interval, &cfg.PushInterval); err != nil {
		return err
	}

	s.setBool("no-hud", fc.NoHUD, &cfg.NoHUD)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
