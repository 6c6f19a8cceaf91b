package repository

import (
	"context"
	"database/sql"

	"github.com/coldreach/coldreach-backend/internal/model"
)

// DefaultPlan is applied to tenants with no explicit plan assignment.
var DefaultPlan = model.Plan{
	Name:         "FREE",
	MonthlySends: 100,
	InboxLimit:   1,
	AILimit:      10,
}

type PlanRepositoryInterface interface {
	// GetForTenant resolves the tenant's plan, falling back to the FREE
	// default when none is assigned.
	GetForTenant(ctx context.Context, tenantID string) (*model.Plan, error)
}

type PlanRepository struct {
	DB *sql.DB
}

func (r *PlanRepository) GetForTenant(ctx context.Context, tenantID string) (*model.Plan, error) {
	query := `
        SELECT p.id, p.name, p.monthly_sends, p.inbox_limit, p.ai_limit
        FROM plans p
        JOIN tenant_plans tp ON tp.plan_id = p.id
        WHERE tp.tenant_id = $1
    `
	var p model.Plan
	err := r.DB.QueryRowContext(ctx, query, tenantID).Scan(
		&p.ID, &p.Name, &p.MonthlySends, &p.InboxLimit, &p.AILimit)
	if err != nil {
		if err == sql.ErrNoRows {
			def := DefaultPlan
			return &def, nil
		}
		return nil, err
	}
	return &p, nil
}
