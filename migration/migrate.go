package migration

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"ping-integrity-service/config"
)

// RunMigrations applies the audit-trail schema migrations.
func RunMigrations() error {
	cfg := config.Cfg.DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)

	// Retry connecting so container startup ordering doesn't matter.
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil && db.Ping() == nil {
			break
		}
		log.Info().Int("attempt", i+1).Msg("Waiting for the database to be ready")
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("could not connect to the database: %w", err)
	}
	db.Close()

	m, err := migrate.New("file://database/migrations", dsn)
	if err != nil {
		return fmt.Errorf("could not start migrations: %w", err)
	}

	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info().Msg("Migrations applied")
	return nil
}
