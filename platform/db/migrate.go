// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"database/sql"
	"io/fs"

	"resto_crm_backend/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending goose migrations from the provided FS.
// The FS is expected to contain the SQL files at its root (see migrations.FS).
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, migrationsFS fs.FS) error {
	sqlDB, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrationsFS)
	if err != nil {
		return err
	}

	if _, err := provider.Up(ctx); err != nil {
		return err
	}

	return nil
}
