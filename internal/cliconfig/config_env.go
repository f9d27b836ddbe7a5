package cliconfig

import (
	"os"
	"time"
)

// ApplyEnvConfig applies FRAMECAST_* environment variables. Explicitly set
// flags win.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", os.Getenv("FRAMECAST_LISTEN"), &cfg.ListenAddr)
	s.setString("format", os.Getenv("FRAMECAST_FORMAT"), &cfg.Format)
	s.setString("log-level", os.Getenv("FRAMECAST_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("mqtt-broker", os.Getenv("FRAMECAST_MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("mqtt-topic", os.Getenv("FRAMECAST_MQTT_TOPIC"), &cfg.MQTTTopic)
	s.setString("push-url", os.Getenv("FRAMECAST_PUSH_URL"), &cfg.PushURL)
	s.setString("push-key", os.Getenv("FRAMECAST_PUSH_KEY"), &cfg.PushKey)

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"width", "FRAMECAST_WIDTH", &cfg.Width},
		{"height", "FRAMECAST_HEIGHT", &cfg.Height},
		{"quality", "FRAMECAST_QUALITY", &cfg.Quality},
		{"preroll", "FRAMECAST_PREROLL", &cfg.PreRollFrames},
		{"readback-depth", "FRAMECAST_READBACK_DEPTH", &cfg.ReadbackDepth},
		{"window", "FRAMECAST_SAMPLE_WINDOW", &cfg.SampleWindow},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	if err := s.setFloatFromString("fps", os.Getenv("FRAMECAST_FPS"), &cfg.TargetFPS); err != nil {
		return err
	}
	if err := s.setFloatFromString("min-fps", os.Getenv("FRAMECAST_MIN_FPS"), &cfg.MinFPS); err != nil {
		return err
	}

	durations := []struct {
		flag, env string
		dst       *time.Duration
	}{
		{"loop-interval", "FRAMECAST_LOOP_INTERVAL", &cfg.LoopInterval},
		{"stats-interval", "FRAMECAST_STATS_INTERVAL", &cfg.StatsLogInterval},
		{"mqtt-interval", "FRAMECAST_MQTT_INTERVAL", &cfg.MQTTInterval},
		{"push-interval", "FRAMECAST_PUSH_INTERVAL", &cfg.PushInterval},
	}
	for _, v := range durations {
		if err := s.setDuration(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("no-hud", os.Getenv("FRAMECAST_NO_HUD"), &cfg.NoHUD)

	return nil
}
