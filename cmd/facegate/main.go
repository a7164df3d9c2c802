// Facegate Core - access terminal fleet scheduler
//
// This is the main entry point for the facegate daemon. It hosts the
// websocket gateway that physical access-control terminals dial into,
// the periodic scheduler that expands campaigns into per-device delivery
// jobs, and the HTTP admin API for inspection and direct commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/facegate/facegate-core/migrations"

	"github.com/facegate/facegate-core/internal/api"
	"github.com/facegate/facegate-core/internal/audit"
	"github.com/facegate/facegate-core/internal/device"
	"github.com/facegate/facegate-core/internal/events"
	"github.com/facegate/facegate-core/internal/gateway"
	"github.com/facegate/facegate-core/internal/infrastructure/config"
	"github.com/facegate/facegate-core/internal/infrastructure/database"
	"github.com/facegate/facegate-core/internal/infrastructure/influxdb"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/infrastructure/mqtt"
	"github.com/facegate/facegate-core/internal/job"
	"github.com/facegate/facegate-core/internal/record"
	"github.com/facegate/facegate-core/internal/schedule"
	"github.com/facegate/facegate-core/internal/scheduler"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Facegate Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	recordRepo := record.NewSQLiteRepository(db.DB)
	scheduleRepo := schedule.NewSQLiteRepository(db.DB)
	jobRepo := job.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event fanout (nil-safe: missing sinks simply drop events)
	publisher := events.New(log, mqttClient, influxClient)

	// Gateway: connection registry, websocket handler, command issuer
	registry := gateway.NewRegistry()
	gwHandler := gateway.NewHandler(cfg.Gateway, log, registry, deviceRepo, recordRepo, auditRepo, publisher)
	issuer := gateway.NewIssuer(log, registry, auditRepo, publisher)

	// Scheduler engine: expand, dispatch, requeue
	clock := scheduler.NewClock()
	expander := scheduler.NewExpander(log, clock, scheduleRepo, jobRepo,
		schedule.CronEvaluator{}, cfg.Scheduler.DedupWindow())
	dispatcher := scheduler.NewDispatcher(log, clock, jobRepo, registry,
		auditRepo, publisher, cfg.Scheduler.DispatchBatch)
	requeuer := scheduler.NewRequeuer(log, clock, jobRepo, publisher,
		cfg.Scheduler.RequeueThreshold(), cfg.Scheduler.MaxRetries)

	engine := scheduler.NewEngine(log, cfg.Scheduler, expander, dispatcher, requeuer)
	engine.Start(ctx)
	defer func() {
		log.Info("stopping scheduler engine")
		engine.Stop()
	}()

	// HTTP server: admin API plus the websocket gateway mount
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Gateway:   cfg.Gateway,
		Logger:    log,
		DB:        db,
		Devices:   deviceRepo,
		Jobs:      jobRepo,
		Schedules: scheduleRepo,
		Records:   recordRepo,
		Audits:    auditRepo,
		Issuer:    issuer,
		WSHandler: gwHandler,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"gateway_path", cfg.Gateway.Path,
		"api_address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting terminal connections)
	// 2. Scheduler engine (finishes in-flight ticks)
	// 3. InfluxDB / MQTT (if enabled)
	// 4. Database

	log.Info("Facegate Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FACEGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FACEGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
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
