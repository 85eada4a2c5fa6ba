package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Monitor count constants.
const (
	// DefaultMaxMonitorCount is the number of monitors kept in sync by default.
	DefaultMaxMonitorCount = 4

	// ExtendedMultiplier scales MaxMonitorCount when monitors.extended is set.
	ExtendedMultiplier = 8

	// NamesPerMonitor is the ratio between the name cache bound and MaxMonitorCount.
	NamesPerMonitor = 4
)

// Config is the root configuration structure for brightsync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Monitors  MonitorsConfig  `yaml:"monitors"`
	Watchers  WatchersConfig  `yaml:"watchers"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MonitorsConfig controls monitor discovery and the target bound.
type MonitorsConfig struct {
	// MaxCount is the base number of target monitors kept in sync.
	MaxCount int `yaml:"max_count"`

	// Extended multiplies MaxCount by ExtendedMultiplier.
	Extended bool `yaml:"extended"`

	// Sources lists the enabled monitor sources: "backlight", "ddcutil".
	Sources []string `yaml:"sources"`

	// BacklightDir is the sysfs backlight class directory.
	BacklightDir string `yaml:"backlight_dir"`

	// DDCUtilBinary is the path to the ddcutil executable.
	DDCUtilBinary string `yaml:"ddcutil_binary"`

	// DDCUtilTimeout bounds a single ddcutil invocation (seconds).
	DDCUtilTimeout int `yaml:"ddcutil_timeout"`
}

// MaxMonitorCount returns the resolved number of target monitors.
func (m MonitorsConfig) MaxMonitorCount() int {
	n := m.MaxCount
	if n <= 0 {
		n = DefaultMaxMonitorCount
	}
	if m.Extended {
		n *= ExtendedMultiplier
	}
	return n
}

// MaxNameCount returns the bound of the persisted name cache.
func (m MonitorsConfig) MaxNameCount() int {
	return NamesPerMonitor * m.MaxMonitorCount()
}

// WatchersConfig contains change-notification source settings.
type WatchersConfig struct {
	Settings   SettingsWatcherConfig `yaml:"settings"`
	Power      MQTTWatcherConfig     `yaml:"power"`
	Brightness MQTTWatcherConfig     `yaml:"brightness"`

	// RefreshInterval periodically refreshes target brightness (seconds, 0 disables).
	RefreshInterval int `yaml:"refresh_interval"`
}

// SettingsWatcherConfig configures the udev-based display topology watcher.
type SettingsWatcherConfig struct {
	Enabled bool `yaml:"enabled"`

	// UdevadmBinary is the path to the udevadm executable.
	UdevadmBinary string `yaml:"udevadm_binary"`

	// Subsystems are passed to udevadm as --subsystem-match filters.
	Subsystems []string `yaml:"subsystems"`

	// DebounceMS collapses bursts of udev events into a single scan trigger.
	DebounceMS int `yaml:"debounce_ms"`
}

// MQTTWatcherConfig configures a watcher fed by an MQTT topic.
// An empty Topic selects the default topic for the watcher.
type MQTTWatcherConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BRIGHTSYNC_SECTION_KEY
// For example: BRIGHTSYNC_DATABASE_PATH, BRIGHTSYNC_MONITORS_EXTENDED
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Monitors: MonitorsConfig{
			MaxCount:       DefaultMaxMonitorCount,
			Sources:        []string{"backlight", "ddcutil"},
			BacklightDir:   "/sys/class/backlight",
			DDCUtilBinary:  "/usr/bin/ddcutil",
			DDCUtilTimeout: 10,
		},
		Watchers: WatchersConfig{
			Settings: SettingsWatcherConfig{
				Enabled:       true,
				UdevadmBinary: "/usr/bin/udevadm",
				Subsystems:    []string{"drm", "backlight"},
				DebounceMS:    500,
			},
			Power:           MQTTWatcherConfig{Enabled: true},
			Brightness:      MQTTWatcherConfig{Enabled: true},
			RefreshInterval: 0,
		},
		Database: DatabaseConfig{
			Path:        "./data/brightsync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "brightsync",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8765,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BRIGHTSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Monitors
	if v := os.Getenv("BRIGHTSYNC_MONITORS_MAX_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitors.MaxCount = n
		}
	}
	if v := os.Getenv("BRIGHTSYNC_MONITORS_EXTENDED"); v != "" {
		cfg.Monitors.Extended = parseBool(v)
	}

	// Database
	if v := os.Getenv("BRIGHTSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BRIGHTSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BRIGHTSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BRIGHTSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BRIGHTSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("BRIGHTSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BRIGHTSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// knownSources are the monitor sources the daemon can construct.
var knownSources = map[string]bool{
	"backlight": true,
	"ddcutil":   true,
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Monitors
	if c.Monitors.MaxCount < 1 {
		errs = append(errs, "monitors.max_count must be at least 1")
	}
	if len(c.Monitors.Sources) == 0 {
		errs = append(errs, "monitors.sources must list at least one source")
	}
	for _, s := range c.Monitors.Sources {
		if !knownSources[strings.ToLower(s)] {
			errs = append(errs, fmt.Sprintf("monitors.sources: unknown source %q", s))
		}
	}

	// Watchers
	if c.Watchers.Settings.DebounceMS < 0 {
		errs = append(errs, "watchers.settings.debounce_ms must not be negative")
	}
	if c.Watchers.RefreshInterval < 0 {
		errs = append(errs, "watchers.refresh_interval must not be negative")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
