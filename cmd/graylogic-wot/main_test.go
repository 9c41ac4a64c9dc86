package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/config"
)

// writeConfig writes a config with every network dependency disabled and
// returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
site:
  id: test-site
database:
  path: ` + filepath.Join(dir, "wot.db") + `
  busy_timeout: 1
mqtt:
  enabled: false
influxdb:
  enabled: false
discovery:
  enabled: false
logging:
  level: error
  format: text
adapter:
  poll_interval: 1s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// execute runs the command tree with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "graylogic-wot "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestThingsCommands(t *testing.T) {
	path := writeConfig(t)

	if _, err := execute(t, "-c", path, "things", "add", "http://lamp.local/td", "http://fan.local/td/"); err != nil {
		t.Fatalf("things add error = %v", err)
	}
	if _, err := execute(t, "-c", path, "things", "add", "http://lamp.local/td"); err == nil {
		t.Error("adding a stored URL succeeded")
	}
	if _, err := execute(t, "-c", path, "things", "poll-interval", "12s"); err != nil {
		t.Fatalf("things poll-interval error = %v", err)
	}
	if _, err := execute(t, "-c", path, "things", "rm", "http://lamp.local/td"); err != nil {
		t.Fatalf("things rm error = %v", err)
	}

	out, err := execute(t, "-c", path, "things", "list")
	if err != nil {
		t.Fatalf("things list error = %v", err)
	}
	want := "poll interval: 12s\nhttp://fan.local/td\n"
	if out != want {
		t.Errorf("things list output = %q, want %q", out, want)
	}
}

func TestThingsCommands_InvalidArgs(t *testing.T) {
	path := writeConfig(t)

	if _, err := execute(t, "-c", path, "things", "add"); err == nil {
		t.Error("things add without URLs succeeded")
	}
	if _, err := execute(t, "-c", path, "things", "poll-interval", "soon"); err == nil {
		t.Error("things poll-interval with a bad duration succeeded")
	}
	if _, err := execute(t, "-c", path, "things", "remove", "http://missing.local"); err == nil {
		t.Error("removing an unknown URL succeeded")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_Shutdown(t *testing.T) {
	path := writeConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestAdapterOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Things = []string{"http://lamp.local/td"}

	opts := adapterOptions(cfg, nil, nil, nil)

	if opts.Registry == nil || len(opts.Registry.Loaders) == 0 {
		t.Error("registry not populated")
	}
	if opts.PollInterval != cfg.Adapter.PollInterval || opts.LoadMaxRetries != cfg.Adapter.LoadMaxRetries {
		t.Errorf("adapter timings not mapped: %+v", opts)
	}
	if opts.HTTPClient.Timeout != cfg.HTTP.Timeout || opts.StreamingClient.Timeout != 0 {
		t.Error("HTTP clients not configured")
	}
	if opts.LongPoll.Initial != cfg.Adapter.LongPoll.InitialDelay || opts.LongPoll.Max != cfg.Adapter.LongPoll.MaxDelay {
		t.Errorf("long-poll policy = %+v", opts.LongPoll)
	}
	if len(opts.URLs) != 1 {
		t.Errorf("URLs = %v", opts.URLs)
	}
}
