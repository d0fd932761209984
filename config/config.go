package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	DB          DBConfig
	Redis       RedisConfig
	Scoring     ScoringConfig
	Policy      PolicyConfig
	Zones       []ZoneConfig
	AutoMigrate bool
}

type ServerConfig struct {
	Addr string
}

type DBConfig struct {
	User     string
	Password string
	DBName   string
	SSLMode  string
	Host     string
	Port     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ScoringConfig overrides the engine's detection thresholds. Values of zero
// fall back to the engine defaults, which downstream consumers were tuned
// against.
type ScoringConfig struct {
	LowAccuracyM    float64
	TeleportDistM   float64
	TeleportWindowS float64
	MaxSpeedMps     float64
	MovingSpeedMps  float64
	HeadingSlackDeg float64
}

// PolicyConfig holds the score thresholds the policy layer acts on.
type PolicyConfig struct {
	FlagScore    int
	SuspendScore int
}

// ZoneConfig is a named rectangular operational zone used for audit tagging.
type ZoneConfig struct {
	Name   string
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

var Cfg *Config

func InitConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("policy.flagscore", 40)
	viper.SetDefault("policy.suspendscore", 80)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatal().Err(err).Msg("Error reading config file")
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		log.Fatal().Err(err).Msg("Unable to decode config into struct")
	}
}
