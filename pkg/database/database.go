package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peakscape/tours-api/pkg/config"
)

func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	pc.MinConns = cfg.MinConns
	pc.MaxConns = cfg.MaxConns
	pc.MaxConnLifetime = cfg.MaxLifetime
	pc.HealthCheckPeriod = 30 * time.Second

	return pgxpool.NewWithConfig(ctx, pc)
}
