package db

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eagleeye/internal/config"
)

// Connect opens the postgres database and applies migrations.
func Connect(cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(gormDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Msg("database connected")
	return gormDB, nil
}
