package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags connections in pg_stat_activity.
const ApplicationName = "loinc-etl"

// A load holds one connection for the whole COPY, so idle connections are
// recycled sooner than pgxpool's default.
const maxConnIdleTime = 5 * time.Minute

// poolConfig parses databaseURL and applies the pool limits. An
// application_name given in the URL is kept.
func poolConfig(databaseURL string, maxConns, minConns int32) (*pgxpool.Config, error) {
	if minConns > maxConns {
		return nil, fmt.Errorf("min conns %d exceed max conns %d", minConns, maxConns)
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnIdleTime = maxConnIdleTime
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return cfg, nil
}

// NewPool connects to databaseURL and pings it before returning.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s/%s: %w", cfg.ConnConfig.Host, cfg.ConnConfig.Database, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.ConnConfig.Database, err)
	}

	return pool, nil
}
