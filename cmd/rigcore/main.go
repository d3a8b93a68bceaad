// rigcore - recipe-driven device runtime
//
// This is the main entry point for the rigcore application. rigcore
// hosts stateful device actors whose configurations live in a
// transactional recipe store: exactly one recipe is active at a time,
// and activating another one respawns the device set atomically.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mineichen/rigcore/internal/actor"
	"github.com/mineichen/rigcore/internal/devices"
	"github.com/mineichen/rigcore/internal/devices/emucam"
	"github.com/mineichen/rigcore/internal/devices/ticker"
	"github.com/mineichen/rigcore/internal/events"
	"github.com/mineichen/rigcore/internal/infrastructure/config"
	"github.com/mineichen/rigcore/internal/infrastructure/database"
	"github.com/mineichen/rigcore/internal/infrastructure/logging"
	"github.com/mineichen/rigcore/internal/journal"
	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/runtime"
	"github.com/mineichen/rigcore/internal/telemetry"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting rigcore",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database for the transaction journal
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

	txJournal, err := journal.Open(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("opening transaction journal: %w", err)
	}

	// Connect to MQTT broker (optional)
	var eventSink recipe.EventSink
	var mqttClient *events.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = events.Connect(cfg.MQTT)
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
		eventSink = events.NewPublisher(mqttClient, byte(cfg.MQTT.QoS), log)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *telemetry.Client
	var recorder *telemetry.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, err = telemetry.Connect(cfg.InfluxDB)
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
		recorder = telemetry.NewRecorder(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble the actor system and device drivers
	system := actor.NewSystem()
	system.SetLogger(log)
	if recorder != nil {
		system.SetRecorder(recorder)
	}

	registry := devices.NewRegistry(system,
		emucam.New(),
		ticker.New(),
	)
	log.Info("device drivers registered", "types", registry.DeviceTypes())

	// Open the recipe store
	service, err := recipe.NewService(recipe.ServiceOptions{
		Root:    cfg.Recipes.Path,
		Actions: registry,
		Journal: txJournal,
		Events:  eventSink,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("opening recipe store: %w", err)
	}
	activeID, _ := service.ActiveRecipe()
	log.Info("recipe store opened",
		"path", cfg.Recipes.Path,
		"active_recipe", activeID,
	)

	// Stream committed transactions into telemetry
	if recorder != nil {
		txCh, cancelTx := service.Subscribe()
		defer cancelTx()
		go recorder.ConsumeTransactions(txCh)
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, supervising active recipe")

	// The supervisor blocks until ctx is cancelled, spawning and
	// respawning device actors as transactions demand.
	supervisor := runtime.New(system, service, registry, log)
	if err := supervisor.Run(ctx); err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}

	log.Info("rigcore stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RIGCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RIGCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *events.Client, influxClient *telemetry.Client) error {
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
