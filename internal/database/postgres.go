// Package database opens the shared Postgres pool.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"creatorstudio/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DSN disables TLS for local development unless the connection string says
// otherwise.
func DSN(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	if cfg.Environment != "development" || strings.Contains(dsn, "sslmode") {
		return dsn
	}
	separator := " "
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		separator = "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
	}
	return dsn + separator + "sslmode=disable"
}

// Open connects and pings the pool. Outside development the simple query
// protocol is used so transaction poolers like pgbouncer work.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parsing DB connection string: %w", err)
	}
	if cfg.Environment != "development" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening DB pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging DB: %w", err)
	}
	logger.Info().Str("host", poolCfg.ConnConfig.Host).Uint16("port", poolCfg.ConnConfig.Port).Msg("Database connection successful")
	return pool, nil
}
