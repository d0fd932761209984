package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"ping-integrity-service/config"
)

var DB *sql.DB

// InitDB opens the Postgres connection backing the ping audit trail.
func InitDB() error {
	cfg := config.Cfg.DB
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}
	if err = db.Ping(); err != nil {
		return err
	}
	DB = db
	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Database connected")
	return nil
}
