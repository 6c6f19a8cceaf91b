package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	ListByTenant(ctx context.Context, tenantID string, offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error
	// CompleteFinished moves RUNNING campaigns with no PENDING or ACTIVE
	// enrollments left to COMPLETED. Returns the number transitioned.
	CompleteFinished(ctx context.Context) (int64, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (id, tenant_id, name, status, daily_limit, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.DB.ExecContext(ctx, query, c.ID, c.TenantID, c.Name, c.Status, c.DailyLimit, c.CreatedAt)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `
        SELECT id, tenant_id, name, status, daily_limit, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Status, &c.DailyLimit, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListByTenant(ctx context.Context, tenantID string, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, tenant_id, name, status, daily_limit, created_at, updated_at
              FROM campaigns WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Status, &c.DailyLimit, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE tenant_id=$1`
	countArgs := []interface{}{tenantID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=now() WHERE id=$2`
	_, err := r.DB.ExecContext(ctx, query, status, id)
	return err
}

func (r *CampaignRepository) CompleteFinished(ctx context.Context) (int64, error) {
	query := `
        UPDATE campaigns SET status='COMPLETED', updated_at=now()
        WHERE status='RUNNING'
          AND EXISTS (
            SELECT 1 FROM campaign_leads cl WHERE cl.campaign_id = campaigns.id
          )
          AND NOT EXISTS (
            SELECT 1 FROM campaign_leads cl
            WHERE cl.campaign_id = campaigns.id
              AND cl.status IN ('PENDING', 'ACTIVE')
          )
    `
	res, err := r.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
