package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/discogs-dumpload/internal/config"
)

const applicationName = "dumpload"

// NewPool opens the connection pool used by a load run and pings it.
//
// Each load worker holds a connection while it stages and another for its
// commit transaction, and the catalog lookups need one more, so MaxConns is
// raised to 2*workers+1 when configured lower.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, workers int) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg, workers)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PoolConfig builds the pgxpool configuration for cfg.
func PoolConfig(cfg config.DatabaseConfig, workers int) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	if need := int32(2*workers + 1); poolCfg.MaxConns < need {
		poolCfg.MaxConns = need
	}
	poolCfg.MinConns = min(cfg.MinConns, poolCfg.MaxConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolCfg, nil
}
