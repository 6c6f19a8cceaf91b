package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
)

type LeadRepositoryInterface interface {
	Create(ctx context.Context, l *model.Lead) error
	GetByID(ctx context.Context, id string) (*model.Lead, error)
	// GetByIDs returns the subset of ids that exist and belong to the
	// tenant; unknown ids are silently absent from the result.
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Lead, error)
	UpdateStatus(ctx context.Context, id string, status model.LeadStatus) error
}

type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, tenant_id, email, first_name, last_name, company, status, created_at`

func (r *LeadRepository) Create(ctx context.Context, l *model.Lead) error {
	l.CreatedAt = time.Now()
	if l.Status == "" {
		l.Status = model.LeadNew
	}
	query := `
        INSERT INTO leads (id, tenant_id, email, first_name, last_name, company, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.ExecContext(ctx, query,
		l.ID, l.TenantID, l.Email, l.FirstName, l.LastName, l.Company, l.Status, l.CreatedAt)
	return err
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*model.Lead, error) {
	var l model.Lead
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id=$1`, id,
	).Scan(&l.ID, &l.TenantID, &l.Email, &l.FirstName, &l.LastName, &l.Company, &l.Status, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewLeadNotFound(id)
		}
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Lead, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id=$1 AND id = ANY($2)`,
		tenantID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*model.Lead{}
	for rows.Next() {
		l := &model.Lead{}
		if err := rows.Scan(&l.ID, &l.TenantID, &l.Email, &l.FirstName, &l.LastName, &l.Company, &l.Status, &l.CreatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status model.LeadStatus) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE leads SET status=$1 WHERE id=$2`, status, id)
	return err
}
