// brightsync keeps the brightness of every connected display in sync.
//
// The daemon enumerates backlight and DDC/CI monitors, tracks them in a
// registry, reacts to display topology, power and brightness events, and
// serves the result over HTTP, WebSocket and MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/brightsync/internal/api"
	"github.com/nerrad567/brightsync/internal/controller"
	"github.com/nerrad567/brightsync/internal/infrastructure/config"
	"github.com/nerrad567/brightsync/internal/infrastructure/database"
	"github.com/nerrad567/brightsync/internal/infrastructure/influxdb"
	"github.com/nerrad567/brightsync/internal/infrastructure/logging"
	"github.com/nerrad567/brightsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/brightsync/internal/monitor"
	"github.com/nerrad567/brightsync/internal/namecache"
	"github.com/nerrad567/brightsync/internal/process"
	"github.com/nerrad567/brightsync/internal/watcher"
	"github.com/nerrad567/brightsync/migrations"
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

// shutdownTimeout bounds the final trigger drain and name save.
const shutdownTimeout = 15 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting brightsync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// State database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Names and monitors
	store := namecache.NewSQLiteStore(db)
	names, err := namecache.Open(ctx, store, cfg.Monitors.MaxNameCount())
	if err != nil {
		return fmt.Errorf("loading name cache: %w", err)
	}
	log.Info("name cache loaded", "names", names.Len(), "max", names.MaxCount())

	source, sourceNames := buildSource(cfg.Monitors, log)
	if len(sourceNames) == 0 {
		return errors.New("no monitor source available")
	}
	log.Info("monitor sources ready", "sources", sourceNames)

	registry := monitor.NewRegistry(cfg.Monitors.MaxMonitorCount(), names)
	registry.SetLogger(log.Component("monitor"))

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	opts := controller.Options{
		Source:   source,
		Registry: registry,
		Names:    names,
		Store:    store,
		Logger:   log.Component("controller"),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	ctrl, err := controller.New(opts)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		state := newStatePublisher(mqttClient, log.Component("state"), stateQueueSize)
		defer state.Close()
		ctrl.AddObserver(state)
	} else {
		log.Info("MQTT disabled")
	}

	// Change watchers
	watchers, settings := buildWatchers(cfg, ctrl, mqttClient, log)
	group := watcher.NewGroup(log.Component("watcher"), watchers...)
	if startErr := group.Start(ctx); startErr != nil {
		return fmt.Errorf("starting watchers: %w", startErr)
	}
	defer func() {
		log.Info("stopping watchers")
		if stopErr := group.Stop(); stopErr != nil {
			log.Error("error stopping watchers", "error", stopErr)
		}
	}()
	log.Info("watchers started", "watchers", group.Names())

	// Controller loop. Stopped before the watchers and clients above.
	runCtx, stopRun := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})
	defer func() {
		stopRun()
		if waitErr := g.Wait(); waitErr != nil {
			log.Error("controller loop failed", "error", waitErr)
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("closing controller")
		if closeErr := ctrl.Close(closeCtx); closeErr != nil {
			log.Error("error closing controller", "error", closeErr)
		}
	}()

	// HTTP API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log,
			Controller: ctrl,
			MQTT:       mqttClient,
			DB:         db,
			Processes:  processStats(settings),
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred calls run in reverse order: API, controller (final name
	// save), watchers, MQTT, InfluxDB, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BRIGHTSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BRIGHTSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildSource combines the configured monitor sources. Sources whose tool
// is missing are skipped with a warning; the returned names list the ones
// kept.
func buildSource(cfg config.MonitorsConfig, log *logging.Logger) (*monitor.MultiSource, []string) {
	var sources []monitor.NamedSource
	for _, name := range cfg.Sources {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "backlight":
			sources = append(sources, monitor.NamedSource{
				Name:   name,
				Source: monitor.NewBacklightSource(cfg.BacklightDir),
			})
		case "ddcutil":
			ddc := monitor.NewDDCSource(cfg.DDCUtilBinary, time.Duration(cfg.DDCUtilTimeout)*time.Second)
			if !ddc.Available() {
				log.Warn("ddcutil not found, external monitors disabled", "binary", cfg.DDCUtilBinary)
				continue
			}
			sources = append(sources, monitor.NamedSource{Name: name, Source: ddc})
		default:
			log.Warn("ignoring unknown monitor source", "source", name)
		}
	}

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	return monitor.NewMultiSource(sources...), names
}

// buildWatchers creates the enabled change watchers. The MQTT watchers need
// a client and are skipped without one.
func buildWatchers(cfg *config.Config, ctrl *controller.Controller, client *mqtt.Client, log *logging.Logger) ([]watcher.Watcher, *watcher.SettingsWatcher) {
	var (
		watchers []watcher.Watcher
		settings *watcher.SettingsWatcher
		wlog     = log.Component("watcher")
	)

	if cfg.Watchers.Settings.Enabled {
		if _, err := os.Stat(cfg.Watchers.Settings.UdevadmBinary); err != nil {
			log.Warn("udevadm not found, display changes will not trigger scans",
				"binary", cfg.Watchers.Settings.UdevadmBinary)
		} else {
			settings = watcher.NewSettingsWatcher(cfg.Watchers.Settings, ctrl, wlog)
			watchers = append(watchers, settings)
		}
	}

	if client != nil {
		qos := byte(cfg.MQTT.QoS)
		if cfg.Watchers.Power.Enabled {
			watchers = append(watchers, watcher.NewPowerWatcher(client, cfg.Watchers.Power.Topic, qos, ctrl, wlog))
		}
		if cfg.Watchers.Brightness.Enabled {
			watchers = append(watchers, watcher.NewBrightnessWatcher(client, cfg.Watchers.Brightness.Topic, qos, ctrl, wlog))
		}
	}

	if cfg.Watchers.RefreshInterval > 0 {
		interval := time.Duration(cfg.Watchers.RefreshInterval) * time.Second
		watchers = append(watchers, watcher.NewIntervalWatcher(interval, ctrl))
	}

	return watchers, settings
}

// processStats reports the udevadm supervisor, if one is running.
func processStats(settings *watcher.SettingsWatcher) api.ProcessStats {
	if settings == nil {
		return nil
	}
	return func() []process.Stats {
		return []process.Stats{settings.Process()}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
