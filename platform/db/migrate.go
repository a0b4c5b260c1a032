// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"database/sql"
	"embed"
	"strings"

	"referral_backend/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies all pending embedded migrations.
// A blank database URL disables migrations entirely.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig) error {
	url := strings.TrimSpace(cfg.GetDatabaseURL())
	if url == "" {
		return nil
	}

	conn, err := sql.Open("pgx", url)
	if err != nil {
		return err
	}
	defer conn.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, conn, "migrations")
}
