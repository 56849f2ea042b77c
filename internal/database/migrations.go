package database

import (
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"busticket/internal/database/migrations"
)

// RunMigrations applies the embedded goose migrations up to the latest version.
func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "."); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	version, err := goose.GetDBVersion(db.DB)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	slog.Info("All migrations completed successfully", "version", version)
	return nil
}
