package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ping-integrity-service/api"
	"ping-integrity-service/cache"
	"ping-integrity-service/config"
	"ping-integrity-service/database"
	"ping-integrity-service/geofence"
	"ping-integrity-service/migration"
	"ping-integrity-service/policy"
	"ping-integrity-service/scoring"
)

func main() {
	if os.Getenv("PING_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	if os.Getenv("PING_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	config.InitConfig()

	if config.Cfg.AutoMigrate {
		if err := migration.RunMigrations(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	if err := database.InitDB(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := cache.InitRedis(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	zones, err := geofence.NewIndex(config.Cfg.Zones)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build geofence index")
	}

	api.Setup(
		scoring.NewEngine(engineThresholds(config.Cfg.Scoring)),
		zones,
		policy.FromConfig(config.Cfg.Policy),
	)
	router := api.RegisterRoutes()

	addr := config.Cfg.Server.Addr
	log.Info().Str("addr", addr).Msg("Server started")
	log.Fatal().Err(http.ListenAndServe(addr, router)).Msg("Server stopped")
}

// engineThresholds applies config overrides on top of the engine defaults.
// Weights are deliberately not configurable: downstream consumers depend on
// their exact values.
func engineThresholds(cfg config.ScoringConfig) scoring.Thresholds {
	t := scoring.DefaultThresholds()
	if cfg.LowAccuracyM > 0 {
		t.LowAccuracyM = cfg.LowAccuracyM
	}
	if cfg.TeleportDistM > 0 {
		t.TeleportDistM = cfg.TeleportDistM
	}
	if cfg.TeleportWindowS > 0 {
		t.TeleportWindowS = cfg.TeleportWindowS
	}
	if cfg.MaxSpeedMps > 0 {
		t.MaxSpeedMps = cfg.MaxSpeedMps
	}
	if cfg.MovingSpeedMps > 0 {
		t.MovingSpeedMps = cfg.MovingSpeedMps
	}
	if cfg.HeadingSlackDeg > 0 {
		t.HeadingSlackDeg = cfg.HeadingSlackDeg
	}
	return t
}
