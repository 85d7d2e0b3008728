package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending migration in migrations to the pool's database
func (db *DB) Migrate(ctx context.Context, migrations fs.FS) error {
	// goose works on database/sql, so open a stdlib handle over the pool config
	sqlDB := stdlib.OpenDB(*db.Pool.Config().ConnConfig)
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	for _, result := range results {
		if db.logger != nil {
			db.logger.Info("migration applied",
				slog.String("source", result.Source.Path),
				slog.Duration("duration", result.Duration))
		}
	}

	return nil
}
