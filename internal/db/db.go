package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/coldreach/coldreach-backend/internal/config/configs"
)

// New opens a PostgreSQL connection pool and verifies connectivity with a
// five second ping. The caller owns the returned pool and must close it.
func New(ctx context.Context, cfg configs.Postgres) (*sql.DB, error) {
	pool, err := sql.Open("postgres", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
