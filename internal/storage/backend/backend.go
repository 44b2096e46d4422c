// Package backend builds the store set selected by the storage configuration.
package backend

import (
	"context"
	"fmt"

	"crossover-lab/internal/config"
	"crossover-lab/internal/storage"
	chstore "crossover-lab/internal/storage/clickhouse"
	"crossover-lab/internal/storage/memory"
	"crossover-lab/internal/storage/migrations"
	pgstore "crossover-lab/internal/storage/postgres"
)

// Stores groups every store a binary may need.
// Trace is nil when no trace backend is configured.
type Stores struct {
	Backend string
	Bars    storage.BarStore
	Runs    storage.RunStore
	Trades  storage.TradeRecordStore
	Trace   storage.TraceStore
}

// Open connects the configured backend and returns its stores plus a cleanup func.
//
//   - memory: everything in process memory.
//   - postgres: bars, runs and trades in PostgreSQL; traces in ClickHouse when a
//     clickhouse DSN is set.
//   - clickhouse: bars and traces in ClickHouse; runs and trades in PostgreSQL.
//
// With migrate set, schema migrations run before the stores are returned.
func Open(ctx context.Context, cfg config.Storage, migrate bool) (*Stores, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return &Stores{
			Backend: config.BackendMemory,
			Bars:    memory.NewBarStore(),
			Runs:    memory.NewRunStore(),
			Trades:  memory.NewTradeRecordStore(),
			Trace:   memory.NewTraceStore(),
		}, func() {}, nil
	case config.BackendPostgres, config.BackendClickhouse:
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Backend)
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	stores := &Stores{
		Backend: cfg.Backend,
		Bars:    pgstore.NewBarStore(pool),
		Runs:    pgstore.NewRunStore(pool),
		Trades:  pgstore.NewTradeRecordStore(pool),
	}

	if cfg.ClickhouseDSN == "" {
		if cfg.Backend == config.BackendClickhouse {
			pool.Close()
			return nil, nil, fmt.Errorf("%w: clickhouse backend without clickhouse_dsn", config.ErrInvalidConfig)
		}
		return stores, pool.Close, nil
	}

	// ClickHouse
	chConn, err := connectClickhouse(ctx, cfg.ClickhouseDSN, migrate)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	stores.Trace = chstore.NewTraceStore(chConn)
	if cfg.Backend == config.BackendClickhouse {
		stores.Bars = chstore.NewBarStore(chConn)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

func connectClickhouse(ctx context.Context, dsn string, migrate bool) (*chstore.Conn, error) {
	if migrate {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return conn, nil
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return conn, nil
}
