package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/framecast/pkg/framecast"
)

// Config holds CLI configuration for framecast.
type Config struct {
	ListenAddr string

	Width     int
	Height    int
	TargetFPS float64
	// MinFPS enables adaptive frame rate down to this floor. 0 disables it.
	MinFPS float64

	Format  string
	Quality int

	PreRollFrames int
	ReadbackDepth int
	SampleWindow  int

	LoopInterval     time.Duration
	StatsLogInterval time.Duration

	LogLevel string
	NoHUD    bool

	MQTTBroker   string
	MQTTTopic    string
	MQTTInterval time.Duration

	PushURL      string
	PushKey      string
	PushInterval time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       framecast.DefaultListenAddr,
		Width:            framecast.DefaultWidth,
		Height:           framecast.DefaultHeight,
		TargetFPS:        framecast.DefaultTargetFPS,
		Format:           framecast.DefaultFormat,
		Quality:          framecast.DefaultQuality,
		ReadbackDepth:    framecast.DefaultReadbackDepth,
		SampleWindow:     framecast.DefaultSampleWindow,
		StatsLogInterval: 10 * time.Second,
		LogLevel:         "info",
		MQTTTopic:        "framecast",
		MQTTInterval:     2 * time.Second,
		PushInterval:     5 * time.Second,
		PushKey:          os.Getenv("FRAMECAST_PUSH_KEY"),
	}
}

// Validate checks the configuration for errors and normalizes values.
func (c *Config) Validate() error {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.PushURL = strings.TrimSuffix(c.PushURL, "/")

	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.PushURL != "" && c.PushInterval <= 0 {
		return fmt.Errorf("push interval must be positive")
	}
	if c.MinFPS < 0 || c.MinFPS > c.TargetFPS {
		return fmt.Errorf("min fps must be between 0 and the target fps")
	}
	if c.MQTTBroker != "" && c.MQTTInterval <= 0 {
		return fmt.Errorf("mqtt interval must be positive")
	}

	bc := c.BridgeConfig("")
	return bc.Validate()
}

// BridgeConfig converts c into a library Config. configPath is handed to
// plugins for hot reload.
func (c Config) BridgeConfig(configPath string) framecast.Config {
	bc := framecast.Config{
		Width:            c.Width,
		Height:           c.Height,
		TargetFPS:        c.TargetFPS,
		ListenAddr:       c.ListenAddr,
		Format:           c.Format,
		Quality:          c.Quality,
		PreRollFrames:    c.PreRollFrames,
		ReadbackDepth:    c.ReadbackDepth,
		SampleWindow:     c.SampleWindow,
		LoopInterval:     c.LoopInterval,
		StatsLogInterval: c.StatsLogInterval,
		DisableHUD:       c.NoHUD,
		ConfigPath:       configPath,
	}
	bc.SetDefaults()
	return bc
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.PushKey != "" {
		c.PushKey = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
