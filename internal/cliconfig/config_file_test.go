package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	withPlugins := FileConfig{}
	withPlugins.MQTT.Broker = "localhost:1883"
	withPlugins.MQTT.Interval = "500ms"
	withPlugins.Push.URL = "https://collector/v1"
	withPlugins.Push.AuthKey = "k"

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				ListenAddr:       "0.0.0.0:8080",
				Width:            640,
				Height:           480,
				TargetFPS:        24,
				Format:           "png",
				Quality:          60,
				StatsLogInterval: "1m",
				NoHUD:            &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				ListenAddr:       "0.0.0.0:8080",
				Width:            640,
				Height:           480,
				TargetFPS:        24,
				Format:           "png",
				Quality:          60,
				StatsLogInterval: time.Minute,
				NoHUD:            true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Width:  640,
				Height: 480,
			},
			changed: map[string]bool{"width": true},
			initial: Config{Width: 1920, Height: 1080},
			expected: Config{
				Width:  1920, // unchanged because flag was set
				Height: 480,
			},
		},
		{
			name:       "plugin sections",
			fileConfig: withPlugins,
			changed:    map[string]bool{},
			expected: Config{
				MQTTBroker:   "localhost:1883",
				MQTTInterval: 500 * time.Millisecond,
				PushURL:      "https://collector/v1",
				PushKey:      "k",
			},
		},
		{
			name:       "zero values keep current settings",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{Width: 800, Format: "jpeg"},
			expected:   Config{Width: 800, Format: "jpeg"},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{LoopInterval: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
listen = "127.0.0.1:9999"
width = 1024
height = 768
target_fps = 30.0
format = "jpeg"
jpeg_quality = 90
no_hud = true

[mqtt]
broker = "tcp://localhost:1883"
topic = "lab"

[push]
url = "https://collector"
interval = "10s"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %v, want 127.0.0.1:9999", fc.ListenAddr)
	}
	if fc.Width != 1024 || fc.Height != 768 {
		t.Errorf("size = %dx%d, want 1024x768", fc.Width, fc.Height)
	}
	if fc.TargetFPS != 30 {
		t.Errorf("TargetFPS = %v, want 30", fc.TargetFPS)
	}
	if fc.Quality != 90 {
		t.Errorf("Quality = %v, want 90", fc.Quality)
	}
	if fc.NoHUD == nil || !*fc.NoHUD {
		t.Errorf("NoHUD = %v, want true", fc.NoHUD)
	}
	if fc.MQTT.Broker != "tcp://localhost:1883" || fc.MQTT.Topic != "lab" {
		t.Errorf("MQTT = %+v", fc.MQTT)
	}
	if fc.Push.URL != "https://collector" || fc.Push.Interval != "10s" {
		t.Errorf("Push = %+v", fc.Push)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	if err := os.WriteFile(configPath, []byte("width = [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFileConfig(configPath); err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if path == "" {
		t.Skip("home directory not available")
	}
	if !strings.HasSuffix(path, filepath.Join(".framecast", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %v, want suffix .framecast/config.toml", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false for existing file")
	}
	if FileExists(filepath.Join(tmpDir, "missing.txt")) {
		t.Error("FileExists() = true for missing file")
	}
}
