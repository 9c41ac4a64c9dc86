// Gray Logic WoT - Web of Things protocol bindings
//
// graylogic-wot loads W3C Thing Descriptions over HTTP or MQTT, binds each
// interaction to the protocol its forms name, and publishes the resulting
// device model on the Gray Logic MQTT bus:
//   - Properties are polled, observed and written
//   - Actions are invoked, tracked and cancelled
//   - Events are subscribed to and forwarded
//
// Things are found through configured URLs, URLs stored with
// "graylogic-wot things add", and mDNS discovery.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/binding/protocols"
	"github.com/nerrad567/gray-logic-wot/internal/bridges/wot"
	"github.com/nerrad567/gray-logic-wot/internal/discovery"
	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-wot/internal/settings"
	"github.com/nerrad567/gray-logic-wot/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Without a subcommand the service runs.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "graylogic-wot",
		Short:         "Web of Things bindings for Gray Logic",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (env GRAYLOGIC_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the WoT service until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		newThingsCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "graylogic-wot %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads path, falling back to defaults when the default path
// does not exist. An explicit path must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// openSettings opens and migrates the settings database.
func openSettings(ctx context.Context, cfg *config.Config) (*database.DB, *settings.Repository, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // error path
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, settings.NewRepository(db.DB), nil
}

// run is the service, separated from main for testability.
//
// Parameters:
//   - ctx: Canceled on shutdown signals
//   - configPath: Configuration file to load
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Gray Logic WoT",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, store, err := openSettings(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	notifiers := wot.Notifiers{}

	if cfg.MQTT.Enabled {
		bus, err := mqtt.Connect(ctx, mqtt.OptionsFromConfig(cfg.MQTT))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := bus.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		bus.SetLogger(log)
		bus.SetOnConnect(func() { log.Info("MQTT reconnected") })
		bus.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected", "broker", bus.BrokerURL(), "client_id", cfg.MQTT.Broker.ClientID)

		notifiers = append(notifiers, wot.NewBusNotifier(bus, log.Component("bus")))
	} else {
		log.Info("MQTT bus disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		notifiers = append(notifiers, wot.NewTelemetryNotifier(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	adapter, err := wot.NewAdapter(adapterOptions(cfg, store, notifiers, log.Component("wot")))
	if err != nil {
		return fmt.Errorf("creating adapter: %w", err)
	}
	defer func() {
		log.Info("stopping WoT adapter")
		adapter.Close()
	}()
	if err := adapter.Start(ctx); err != nil {
		return fmt.Errorf("starting adapter: %w", err)
	}

	if cfg.Discovery.Enabled {
		disco := discovery.New(adapter, discovery.Config{
			Domain:    cfg.Discovery.Domain,
			Interface: cfg.Discovery.Interface,
			Logger:    log.Component("discovery"),
		})
		if err := disco.Start(ctx); err != nil {
			return fmt.Errorf("starting discovery: %w", err)
		}
		// Stopped before the adapter: deferred calls run in reverse.
		defer disco.Stop()
	} else {
		log.Info("mDNS discovery disabled")
	}

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// adapterOptions maps configuration onto adapter options.
func adapterOptions(cfg *config.Config, store wot.ConfigStore, notifier wot.Notifier, log wot.Logger) wot.Options {
	a := cfg.Adapter
	return wot.Options{
		Registry:        protocols.Default(),
		Notifier:        notifier,
		Store:           store,
		URLs:            cfg.Things,
		HTTPClient:      &http.Client{Timeout: cfg.HTTP.Timeout},
		StreamingClient: &http.Client{},
		PollInterval:    a.PollInterval,
		LoadCooldown:    a.LoadCooldown,
		LoadRetryDelay:  a.LoadRetryDelay,
		LoadMaxRetries:  a.LoadMaxRetries,
		FetchTimeout:    a.FetchTimeout,
		ConnectTimeout:  a.ConnectTimeout,
		LongPoll: binding.RetryPolicy{
			Initial: a.LongPoll.InitialDelay,
			Max:     a.LongPoll.MaxDelay,
		},
		ClientID: cfg.MQTT.Broker.ClientID,
		Logger:   log,
	}
}
