// taskledger is a multi-account task tracking service.
//
// It serves the HTTP API (signup, login, per-account tasks and account
// management) over SQLite, and optionally publishes domain events to MQTT
// and auth telemetry to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/taskledger/migrations"

	"github.com/nerrad567/taskledger/internal/api"
	"github.com/nerrad567/taskledger/internal/audit"
	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/events"
	"github.com/nerrad567/taskledger/internal/infrastructure/config"
	"github.com/nerrad567/taskledger/internal/infrastructure/database"
	"github.com/nerrad567/taskledger/internal/infrastructure/influxdb"
	"github.com/nerrad567/taskledger/internal/infrastructure/logging"
	"github.com/nerrad567/taskledger/internal/infrastructure/mqtt"
	"github.com/nerrad567/taskledger/internal/task"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting taskledger",
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

	db, err := database.Open(ctx, database.Config{
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

	sinks, err := connectSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer sinks.close(log)

	var publisher events.Publisher = events.Nop{}
	if sinks.mqtt != nil {
		sinks.mqtt.SetLogger(log)
		mqttPublisher := events.NewMQTTPublisher(sinks.mqtt, sinks.mqtt.QoS(), log)
		mqttPublisher.Start()
		defer mqttPublisher.Close()
		publisher = mqttPublisher
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var (
		telemetry api.AuthTelemetry
		credOpts  []auth.CredentialOption
	)
	if sinks.influx != nil {
		sinks.influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = sinks.influx
		credOpts = append(credOpts, auth.WithHashObserver(sinks.influx.WritePasswordHash))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	settings := auth.SettingsFromConfig(cfg)
	codec, err := auth.NewTokenCodec(settings)
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}
	if settings.TokenTTL == 0 {
		log.Warn("session tokens never expire (security.jwt.token_ttl is 0)")
	}

	authService := auth.NewService(
		auth.NewAccountRepository(db.DB),
		auth.NewCredentialManager(settings, credOpts...),
		codec,
	)

	healthSinks := map[string]api.HealthChecker{}
	if sinks.mqtt != nil {
		healthSinks["mqtt"] = sinks.mqtt
	}
	if sinks.influx != nil {
		healthSinks["influxdb"] = sinks.influx
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		DB:        db,
		Sinks:     healthSinks,
		Auth:      authService,
		Tasks:     task.NewService(task.NewSQLiteRepository(db.DB)),
		Sessions:  auth.NewSessionResolver(settings, codec),
		AuditRepo: audit.NewSQLiteRepository(db.DB),
		Events:    publisher,
		Telemetry: telemetry,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, sinks.mqtt, sinks.influx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, event publisher, InfluxDB, MQTT, database.

	log.Info("taskledger stopped")
	return nil
}

// eventSinks holds the optional outbound connections. A nil field means
// the sink is disabled.
type eventSinks struct {
	mqtt   *mqtt.Client
	influx *influxdb.Client
}

// connectSinks dials MQTT and InfluxDB concurrently. A disabled sink is
// left nil; any other failure closes whatever did connect.
func connectSinks(ctx context.Context, cfg *config.Config) (*eventSinks, error) {
	sinks := &eventSinks{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		client, err := mqtt.Connect(gctx, cfg.MQTT)
		switch {
		case errors.Is(err, mqtt.ErrDisabled):
			return nil
		case err != nil:
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		sinks.mqtt = client
		return nil
	})

	g.Go(func() error {
		client, err := influxdb.Connect(gctx, cfg.InfluxDB)
		switch {
		case errors.Is(err, influxdb.ErrDisabled):
			return nil
		case err != nil:
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		sinks.influx = client
		return nil
	})

	if err := g.Wait(); err != nil {
		sinks.close(nil)
		return nil, err
	}
	return sinks, nil
}

// close disconnects the sinks that are connected. log may be nil.
func (s *eventSinks) close(log *logging.Logger) {
	if s.influx != nil {
		if err := s.influx.Close(); err != nil && log != nil {
			log.Error("error closing InfluxDB", "error", err)
		}
	}
	if s.mqtt != nil {
		if err := s.mqtt.Close(); err != nil && log != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses TASKLEDGER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TASKLEDGER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. The MQTT and
// InfluxDB clients may be nil when disabled.
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
