package migrations

import (
	"context"
	"fmt"

	"crossover-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies bars, backtest_runs and trade_records schema.
// Every file uses IF NOT EXISTS, so re-running is a no-op.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
