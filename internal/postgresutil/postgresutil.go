package postgresutil

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the PostgreSQL connection settings.
// An empty ConnectionString means PostgreSQL isn't used.
type Config struct {
	ConnectionString string `env:"CONNECTION_STRING"`
	MaxConns         int32  `env:"MAX_CONNS"` // default: pgxpool's default
}

func (c *Config) Enabled() bool {
	return c.ConnectionString != ""
}

// NewPool connects to PostgreSQL and checks that the connection works.
func NewPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	pgxConf, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("postgresutil: %w", err)
	}
	if cfg.MaxConns > 0 {
		pgxConf.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxConf)
	if err != nil {
		return nil, fmt.Errorf("postgresutil: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgresutil: %w", err)
	}

	return pool, nil
}
