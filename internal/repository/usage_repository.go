package repository

import (
	"context"
	"database/sql"

	"github.com/coldreach/coldreach-backend/internal/model"
)

type UsageRepositoryInterface interface {
	// IncrementIfBelow atomically bumps the (tenant, metric, period)
	// counter when its current value is below limit, returning whether the
	// increment happened. The check and the increment are one SQL
	// statement, so concurrent callers cannot lose updates or overshoot
	// the limit.
	IncrementIfBelow(ctx context.Context, tenantID string, metric model.UsageMetric, period string, limit int) (bool, error)
	Get(ctx context.Context, tenantID string, metric model.UsageMetric, period string) (int, error)
}

type UsageRepository struct {
	DB *sql.DB
}

func (r *UsageRepository) IncrementIfBelow(ctx context.Context, tenantID string, metric model.UsageMetric, period string, limit int) (bool, error) {
	if limit < 1 {
		return false, nil
	}
	// The WHERE on the upsert makes the increment conditional: at the
	// limit no row is updated, the RETURNING yields nothing, and the
	// counter is left untouched.
	query := `
        INSERT INTO usage_counters (tenant_id, metric, period, count)
        VALUES ($1, $2, $3, 1)
        ON CONFLICT (tenant_id, metric, period)
        DO UPDATE SET count = usage_counters.count + 1
        WHERE usage_counters.count < $4
        RETURNING count
    `
	var count int
	err := r.DB.QueryRowContext(ctx, query, tenantID, metric, period, limit).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *UsageRepository) Get(ctx context.Context, tenantID string, metric model.UsageMetric, period string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT count FROM usage_counters WHERE tenant_id=$1 AND metric=$2 AND period=$3`,
		tenantID, metric, period,
	).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}
