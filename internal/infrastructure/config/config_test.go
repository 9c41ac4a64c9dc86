package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
adapter:
  poll_interval: 2s
  load_cooldown: 1s
things:
  - "http://thing.local/things/lamp"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Adapter.PollInterval != 2*time.Second {
		t.Errorf("Adapter.PollInterval = %v, want 2s", cfg.Adapter.PollInterval)
	}
	if cfg.Adapter.LoadCooldown != time.Second {
		t.Errorf("Adapter.LoadCooldown = %v, want 1s", cfg.Adapter.LoadCooldown)
	}
	// Untouched values keep their defaults.
	if cfg.Adapter.LoadMaxRetries != 5 {
		t.Errorf("Adapter.LoadMaxRetries = %d, want 5", cfg.Adapter.LoadMaxRetries)
	}
	if len(cfg.Things) != 1 {
		t.Errorf("len(Things) = %d, want 1", len(cfg.Things))
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
site:
  id: ""
adapter:
  poll_interval: 0s
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "site.id") || !strings.Contains(err.Error(), "poll_interval") {
		t.Errorf("error should list every problem, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("GRAYLOGIC_ADAPTER_POLL_INTERVAL", "9")
	t.Setenv("GRAYLOGIC_DISCOVERY_ENABLED", "false")

	cfg, err := Load(writeConfig(t, "site:\n  id: env\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want /tmp/env.db", cfg.Database.Path)
	}
	if cfg.Adapter.PollInterval != 9*time.Second {
		t.Errorf("Adapter.PollInterval = %v, want 9s", cfg.Adapter.PollInterval)
	}
	if cfg.Discovery.Enabled {
		t.Error("Discovery.Enabled = true, want false")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "empty database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "bad qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "bad broker port", mutate: func(c *Config) { c.MQTT.Broker.Port = 0 }, wantErr: true},
		{name: "bad port ignored when mqtt disabled", mutate: func(c *Config) {
			c.MQTT.Enabled = false
			c.MQTT.Broker.Port = 0
		}, wantErr: false},
		{name: "influx without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.Adapter.LoadMaxRetries = -1 }, wantErr: true},
		{name: "zero connect timeout", mutate: func(c *Config) { c.Adapter.ConnectTimeout = 0 }, wantErr: true},
		{name: "inverted long poll delays", mutate: func(c *Config) {
			c.Adapter.LongPoll.MaxDelay = c.Adapter.LongPoll.InitialDelay / 2
		}, wantErr: true},
		{name: "blank thing url", mutate: func(c *Config) { c.Things = []string{" "} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSecondsOrDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"5", 5 * time.Second},
		{"1500ms", 1500 * time.Millisecond},
		{"2m", 2 * time.Minute},
	}
	for _, tt := range tests {
		got, err := parseSecondsOrDuration(tt.in)
		if err != nil {
			t.Fatalf("parseSecondsOrDuration(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseSecondsOrDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseSecondsOrDuration("soon"); err == nil {
		t.Error("parseSecondsOrDuration(\"soon\") expected error")
	}
}
