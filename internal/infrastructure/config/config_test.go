package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes content to a config.yaml inside a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
monitors:
  max_count: 2
  sources: ["backlight"]
  backlight_dir: "/tmp/backlight"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "127.0.0.1"
  port: 9000
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Monitors.MaxCount != 2 {
		t.Errorf("Monitors.MaxCount = %d, want 2", cfg.Monitors.MaxCount)
	}
	if cfg.Monitors.BacklightDir != "/tmp/backlight" {
		t.Errorf("Monitors.BacklightDir = %q, want %q", cfg.Monitors.BacklightDir, "/tmp/backlight")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT = %+v, want enabled broker.local", cfg.MQTT)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}

	// Untouched sections keep their defaults
	if cfg.Watchers.Settings.UdevadmBinary != "/usr/bin/udevadm" {
		t.Errorf("Watchers.Settings.UdevadmBinary = %q, want default", cfg.Watchers.Settings.UdevadmBinary)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
monitors:
  sources: ["wmi"]
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for unknown source, got nil")
	}
	if !strings.Contains(err.Error(), "unknown source") {
		t.Errorf("error = %v, want mention of unknown source", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BRIGHTSYNC_DATABASE_PATH", "/env/brightsync.db")
	t.Setenv("BRIGHTSYNC_MONITORS_EXTENDED", "true")
	t.Setenv("BRIGHTSYNC_MONITORS_MAX_COUNT", "3")
	t.Setenv("BRIGHTSYNC_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "database:\n  path: /file/brightsync.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/env/brightsync.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if !cfg.Monitors.Extended {
		t.Error("Monitors.Extended = false, want true from env")
	}
	if got := cfg.Monitors.MaxMonitorCount(); got != 3*ExtendedMultiplier {
		t.Errorf("MaxMonitorCount() = %d, want %d", got, 3*ExtendedMultiplier)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestMonitorsConfig_Counts(t *testing.T) {
	tests := []struct {
		name      string
		cfg       MonitorsConfig
		wantMax   int
		wantNames int
	}{
		{
			name:      "default",
			cfg:       MonitorsConfig{MaxCount: DefaultMaxMonitorCount},
			wantMax:   4,
			wantNames: 16,
		},
		{
			name:      "extended",
			cfg:       MonitorsConfig{MaxCount: DefaultMaxMonitorCount, Extended: true},
			wantMax:   32,
			wantNames: 128,
		},
		{
			name:      "zero falls back to default",
			cfg:       MonitorsConfig{},
			wantMax:   4,
			wantNames: 16,
		},
		{
			name:      "custom",
			cfg:       MonitorsConfig{MaxCount: 2},
			wantMax:   2,
			wantNames: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.MaxMonitorCount(); got != tt.wantMax {
				t.Errorf("MaxMonitorCount() = %d, want %d", got, tt.wantMax)
			}
			if got := tt.cfg.MaxNameCount(); got != tt.wantNames {
				t.Errorf("MaxNameCount() = %d, want %d", got, tt.wantNames)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "zero max count",
			mutate:  func(c *Config) { c.Monitors.MaxCount = 0 },
			wantErr: true,
		},
		{
			name:    "no sources",
			mutate:  func(c *Config) { c.Monitors.Sources = nil },
			wantErr: true,
		},
		{
			name:    "source names are case insensitive",
			mutate:  func(c *Config) { c.Monitors.Sources = []string{"DDCUtil"} },
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid API port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "invalid API port ignored when API disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Watchers.Settings.DebounceMS = -1 },
			wantErr: true,
		},
		{
			name:    "negative refresh interval",
			mutate:  func(c *Config) { c.Watchers.RefreshInterval = -5 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.MQTT.QoS = 9

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "database.path") || !strings.Contains(msg, "mqtt.qos") {
		t.Errorf("Validate() = %q, want both database.path and mqtt.qos", msg)
	}
}
