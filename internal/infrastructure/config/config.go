package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic WoT service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	HTTP      HTTPConfig      `yaml:"http"`
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Things lists description URLs loaded on every start, in addition to
	// the URLs stored in the settings database.
	Things []string `yaml:"things"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains settings for the Gray Logic internal bus.
// Per-Thing MQTT brokers are taken from the Thing's forms, not from here.
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// AdapterConfig controls how Thing descriptions are loaded and how devices
// are kept in sync.
type AdapterConfig struct {
	// PollInterval is the delay between two property polls of a device.
	// Overridden at runtime by the value stored in the settings database.
	PollInterval time.Duration `yaml:"poll_interval"`

	// LoadCooldown suppresses repeated loads of the same URL.
	LoadCooldown time.Duration `yaml:"load_cooldown"`

	// LoadRetryDelay and LoadMaxRetries bound description fetch retries.
	LoadRetryDelay time.Duration `yaml:"load_retry_delay"`
	LoadMaxRetries int           `yaml:"load_max_retries"`

	// FetchTimeout bounds a single description fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// ConnectTimeout bounds establishment of a per-Thing transport session.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// LongPoll configures the delay before a failed long-poll is re-issued.
	LongPoll LongPollConfig `yaml:"long_poll"`
}

// LongPollConfig contains long-poll retry backoff bounds.
type LongPollConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// HTTPConfig contains the outbound HTTP client settings used by the HTTP
// bindings. Long-poll requests are not subject to Timeout.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DiscoveryConfig contains mDNS discovery settings.
type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface"`
	Domain    string `yaml:"domain"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_ADAPTER_POLL_INTERVAL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
// It is also used by commands that run without a configuration file.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-wot.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-wot",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Adapter: AdapterConfig{
			PollInterval:   5 * time.Second,
			LoadCooldown:   5 * time.Second,
			LoadRetryDelay: 2 * time.Second,
			LoadMaxRetries: 5,
			FetchTimeout:   10 * time.Second,
			ConnectTimeout: 5 * time.Second,
			LongPoll: LongPollConfig{
				InitialDelay: 1 * time.Second,
				MaxDelay:     30 * time.Second,
			},
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Domain:  "local.",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Adapter
	if v := os.Getenv("GRAYLOGIC_ADAPTER_POLL_INTERVAL"); v != "" {
		if d, err := parseSecondsOrDuration(v); err == nil {
			cfg.Adapter.PollInterval = d
		}
	}

	// Discovery
	if v := os.Getenv("GRAYLOGIC_DISCOVERY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Discovery.Enabled = b
		}
	}
	if v := os.Getenv("GRAYLOGIC_DISCOVERY_INTERFACE"); v != "" {
		cfg.Discovery.Interface = v
	}
}

// parseSecondsOrDuration accepts either a Go duration ("5s") or a bare
// number of seconds ("5").
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && (c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535) {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Adapter.PollInterval <= 0 {
		errs = append(errs, "adapter.poll_interval must be positive")
	}
	if c.Adapter.LoadCooldown < 0 {
		errs = append(errs, "adapter.load_cooldown must not be negative")
	}
	if c.Adapter.LoadRetryDelay < 0 {
		errs = append(errs, "adapter.load_retry_delay must not be negative")
	}
	if c.Adapter.LoadMaxRetries < 0 {
		errs = append(errs, "adapter.load_max_retries must not be negative")
	}
	if c.Adapter.ConnectTimeout <= 0 {
		errs = append(errs, "adapter.connect_timeout must be positive")
	}
	if c.Adapter.FetchTimeout <= 0 {
		errs = append(errs, "adapter.fetch_timeout must be positive")
	}
	if c.Adapter.LongPoll.InitialDelay <= 0 || c.Adapter.LongPoll.MaxDelay < c.Adapter.LongPoll.InitialDelay {
		errs = append(errs, "adapter.long_poll delays must be positive and max_delay >= initial_delay")
	}

	for i, u := range c.Things {
		if strings.TrimSpace(u) == "" {
			errs = append(errs, fmt.Sprintf("things[%d] must not be empty", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
