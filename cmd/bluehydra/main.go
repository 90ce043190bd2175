// Blue Hydra - Bluetooth device discovery sensor
//
// This is the main entry point for the Blue Hydra sensor. It watches the
// local controller's HCI trace, keeps a durable catalog of every classic and
// LE device it sees, and reports presence changes to the telemetry sink.
//
// Startup order:
//  1. configuration and logging
//  2. telemetry (log sink, MQTT sink when enabled)
//  3. catalog store: integrity check, migrations, sync version bump
//  4. local adapter address (ignored in the catalog)
//  5. tracker, observers, optional API server
//  6. scheduler, until cancelled or fatal
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	_ "github.com/nerrad567/blue-hydra/migrations"

	"github.com/nerrad567/blue-hydra/internal/api"
	"github.com/nerrad567/blue-hydra/internal/btmon"
	"github.com/nerrad567/blue-hydra/internal/device"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/config"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/database"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/influxdb"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/logging"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/mqtt"
	"github.com/nerrad567/blue-hydra/internal/process"
	"github.com/nerrad567/blue-hydra/internal/scanner"
	"github.com/nerrad567/blue-hydra/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown or end of replay, otherwise the fatal cause
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Blue Hydra",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version).With("sensor", cfg.Sensor.ID)
	log.Info("configuration loaded", "path", configPath)

	// Telemetry. The log sink is always present so events survive a
	// missing broker.
	sink := telemetry.Multi{telemetry.NewLogSink(log)}
	var mqttSink *telemetry.MQTTSink
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT, cfg.Sensor.ID)
		if connErr != nil {
			log.Warn("MQTT unavailable, telemetry is log-only", "error", connErr)
		} else {
			mqttClient.SetLogger(log)
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()

			mqttSink = telemetry.NewMQTTSink(mqttClient, mqttClient.Topics(), 0)
			mqttSink.SetLogger(log)
			mqttSink.Start()
			// Registered after the client's defer so queued events drain first.
			defer mqttSink.Close()
			sink = append(sink, mqttSink)

			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	// Catalog store
	db, err := openStore(ctx, cfg, sink)
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

	syncVersion, err := device.NewSyncVersionStore(db.DB).Bump(ctx)
	if err != nil {
		report(ctx, sink, telemetry.KeyDBError, telemetry.SeverityFatal, "Sync version update failed", err.Error())
		return fmt.Errorf("bumping sync version: %w", err)
	}
	report(ctx, sink, telemetry.KeySyncReset, telemetry.SeverityInfo, "Catalog sync reset",
		fmt.Sprintf("sync version %d", syncVersion))

	runner := process.NewExecRunner(
		time.Duration(cfg.Scan.CommandTimeout)*time.Second,
		time.Duration(cfg.Scan.CommandGrace)*time.Second,
	)

	ignore := slices.Clone(cfg.Filters.IgnoreMAC)
	if cfg.Replay.File == "" {
		local, adapterErr := scanner.LocalAdapterAddress(ctx, runner, cfg.Bluetooth.HciconfigBinary, cfg.Bluetooth.Device)
		if adapterErr != nil {
			report(ctx, sink, telemetry.KeyMacReadError, telemetry.SeverityFatal, "Unable to read local adapter address", adapterErr.Error())
			return fmt.Errorf("reading local adapter address: %w", adapterErr)
		}
		log.Info("local adapter", "device", cfg.Bluetooth.Device, "address", local)
		ignore = append(ignore, local)
	}

	// Tracker
	history := device.NewSQLiteStatusHistoryRepository(db.DB)
	tracker := device.NewTracker(device.NewSQLiteRepository(db.DB), trackerConfig(cfg, ignore))
	tracker.SetLogger(log)
	tracker.SetHistory(history)
	if loadErr := tracker.Load(ctx); loadErr != nil {
		report(ctx, sink, telemetry.KeyStoreUnavailable, telemetry.SeverityFatal, "Catalog load failed", loadErr.Error())
		return fmt.Errorf("loading catalog: %w", loadErr)
	}
	log.Info("catalog loaded", "devices", tracker.Stats().Devices, "sync_version", syncVersion)

	tracker.AddStatusNotifier(telemetry.NewStatusEvents(sink))
	if mqttSink != nil {
		tracker.AddStatusNotifier(mqttSink)
		if cfg.Scan.AggressiveRSSI {
			tracker.AddSignalObserver(telemetry.NewSignalForwarder(mqttSink, 0, 0))
		}
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Sensor.ID)
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
		if cfg.Diagnostics.RSSILog {
			tracker.AddSignalObserver(signalWriter{client: influxClient})
		}
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Scheduler
	source, err := lineSource(cfg, log)
	if err != nil {
		return err
	}
	sched, err := scanner.NewScheduler(schedulerConfig(cfg), source, tracker, runner)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.SetLogger(log)
	sched.SetSink(sink)
	if mqttSink != nil {
		sched.SetResyncer(mqttSink)
	}

	closeMirrors, err := installMirrors(cfg, sched)
	if err != nil {
		return err
	}
	defer closeMirrors()

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Catalog: tracker,
			History: history,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		srv.SetPipeline(sched)
		tracker.AddSignalObserver(srv.Hub())
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, scanning")
	if err := sched.Run(ctx); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}

	log.Info("Blue Hydra stopped", "stats", sched.Stats())
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BLUEHYDRA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BLUEHYDRA_CONFIG"); path != "" {
		return path
	}
	return config.DefaultPath
}

// openStore opens the catalog and applies migrations. A corrupt file has
// already been moved aside by database.Open; both failures are reported
// through the sink before the error is returned.
func openStore(ctx context.Context, cfg *config.Config, sink telemetry.Sink) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
		FastWrites:  cfg.Database.FastWrites,
	})
	if err != nil {
		if errors.Is(err, database.ErrCorrupt) {
			report(ctx, sink, telemetry.KeyDBCorrupt, telemetry.SeverityError, "Database corrupt", err.Error())
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		report(ctx, sink, telemetry.KeyDBError, telemetry.SeverityFatal, "Database migration failed", err.Error())
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// report sends one operator event. Delivery failures are already logged by
// the log sink, so they are not propagated.
func report(ctx context.Context, sink telemetry.Sink, key string, sev telemetry.Severity, title, message string) {
	//nolint:errcheck // fire-and-forget
	sink.SendEvent(ctx, telemetry.Source, telemetry.Event{
		Key:      key,
		Title:    title,
		Message:  message,
		Severity: sev,
	})
}

func trackerConfig(cfg *config.Config, ignore []string) device.TrackerConfig {
	return device.TrackerConfig{
		ScanInterval:    cfg.StatusInterval(),
		OfflineMultiple: cfg.Scan.OfflineMultiple,
		OldMultiple:     cfg.Scan.OldMultiple,
		Filter: device.FilterConfig{
			IncludeEnabled: cfg.Filters.IncludeMode == config.FilterModeEnabled,
			IncludeMAC:     cfg.Filters.IncludeMAC,
			IncludeProx:    cfg.Filters.IncludeProx,
			ExcludeMAC:     cfg.Filters.ExcludeMAC,
			ExcludeProx:    cfg.Filters.ExcludeProx,
			IgnoreMAC:      ignore,
		},
	}
}

func schedulerConfig(cfg *config.Config) scanner.Config {
	return scanner.Config{
		Device:            cfg.Bluetooth.Device,
		HcitoolBinary:     cfg.Bluetooth.HcitoolBinary,
		StatusInterval:    cfg.StatusInterval(),
		InfoScanInterval:  cfg.InfoScanInterval(),
		Workers:           cfg.Scan.Workers,
		MaxTries:          cfg.Scan.MaxTries,
		RetryInitialDelay: time.Duration(cfg.Scan.RetryInitialDelay) * time.Second,
		RestartWindow:     time.Duration(cfg.Scan.RestartWindow) * time.Second,
		ResyncSchedule:    cfg.Scan.ResyncSchedule,
		Chunker: btmon.ChunkerConfig{
			MaxChunkLines: cfg.Diagnostics.MaxChunkLines,
			MaxLineLength: cfg.Diagnostics.MaxLineLength,
		},
	}
}

// lineSource returns the replay file when one is configured, otherwise the
// supervised monitor process.
func lineSource(cfg *config.Config, log *logging.Logger) (scanner.LineSource, error) {
	if cfg.Replay.File != "" {
		if _, err := os.Stat(cfg.Replay.File); err != nil {
			return nil, fmt.Errorf("replay file: %w", err)
		}
		log.Info("replay mode", "file", cfg.Replay.File)
		return scanner.NewFileSource(cfg.Replay.File, cfg.Diagnostics.MaxLineLength), nil
	}

	monitor := process.NewManager(process.Config{
		Name:            "btmon",
		Binary:          cfg.Bluetooth.MonitorBinary,
		Args:            cfg.MonitorArgs(),
		GracefulTimeout: time.Duration(cfg.Scan.CommandGrace) * time.Second,
		MaxLineLength:   cfg.Diagnostics.MaxLineLength,
	})
	monitor.SetLogger(log)
	return monitor, nil
}

// installMirrors opens the diagnostic mirror files. The returned func
// closes whatever was opened.
func installMirrors(cfg *config.Config, sched *scanner.Scheduler) (func(), error) {
	var mirrors []*btmon.FileMirror
	closeAll := func() {
		for _, m := range mirrors {
			m.Close() //nolint:errcheck // diagnostics only
		}
	}

	if cfg.Diagnostics.BtmonRawLog != "" {
		m, err := btmon.NewFileMirror(cfg.Diagnostics.BtmonRawLog, 0)
		if err != nil {
			return closeAll, fmt.Errorf("raw monitor log: %w", err)
		}
		mirrors = append(mirrors, m)
		sched.SetRawMirror(m)
	}
	if cfg.Diagnostics.ChunkerDebug && cfg.Diagnostics.BtmonLog != "" {
		m, err := btmon.NewFileMirror(cfg.Diagnostics.BtmonLog, 0)
		if err != nil {
			closeAll()
			return func() {}, fmt.Errorf("chunk log: %w", err)
		}
		mirrors = append(mirrors, m)
		sched.SetChunkMirror(m)
	}
	return closeAll, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// signalWriter writes RSSI observations to InfluxDB.
type signalWriter struct {
	client *influxdb.Client
}

// ObserveSignal implements device.SignalObserver.
func (w signalWriter) ObserveSignal(sig device.Signal) {
	w.client.WriteSignal(signalPoint(sig))
}

func signalPoint(sig device.Signal) influxdb.SignalPoint {
	p := influxdb.SignalPoint{
		Address: sig.Address,
		Mode:    string(sig.Mode),
		RSSI:    sig.RSSI,
		TxPower: sig.TxPower,
		Time:    sig.At,
	}
	if sig.Range != nil {
		meters := sig.Range.Meters
		p.Meters = &meters
		p.Bucket = sig.Range.Bucket
	}
	return p
}
