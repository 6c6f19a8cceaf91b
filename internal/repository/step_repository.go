package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
)

type StepRepositoryInterface interface {
	// Create appends the step at the next free order within its campaign.
	Create(ctx context.Context, s *model.CampaignStep) error
	GetByID(ctx context.Context, id string) (*model.CampaignStep, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]*model.CampaignStep, error)
	Update(ctx context.Context, s *model.CampaignStep) error
	// DeleteAndCompact removes the step and shifts every later step down by
	// one, keeping orders a contiguous 1..N sequence.
	DeleteAndCompact(ctx context.Context, campaignID, stepID string) error
	// Reorder rewrites the full order set to match stepIDs. The list must
	// be an exact permutation of the campaign's steps; anything else is
	// rejected without partial mutation.
	Reorder(ctx context.Context, campaignID string, stepIDs []string) error
}

type StepRepository struct {
	DB *sql.DB
}

func (r *StepRepository) Create(ctx context.Context, s *model.CampaignStep) error {
	s.CreatedAt = time.Now()
	if s.Type == "" {
		s.Type = model.StepEmail
	}
	query := `
        INSERT INTO campaign_steps (id, campaign_id, step_order, type, subject, body, delay_days, created_at)
        VALUES ($1, $2,
            (SELECT COALESCE(MAX(step_order), 0) + 1 FROM campaign_steps WHERE campaign_id = $2),
            $3, $4, $5, $6, $7)
        RETURNING step_order
    `
	return r.DB.QueryRowContext(ctx, query,
		s.ID, s.CampaignID, s.Type, s.Subject, s.Body, s.DelayDays, s.CreatedAt,
	).Scan(&s.StepOrder)
}

func (r *StepRepository) GetByID(ctx context.Context, id string) (*model.CampaignStep, error) {
	query := `
        SELECT id, campaign_id, step_order, type, subject, body, delay_days, created_at
        FROM campaign_steps WHERE id=$1
    `
	var s model.CampaignStep
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.CampaignID, &s.StepOrder, &s.Type, &s.Subject, &s.Body, &s.DelayDays, &s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewStepNotFound(id)
		}
		return nil, err
	}
	return &s, nil
}

func (r *StepRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*model.CampaignStep, error) {
	query := `
        SELECT id, campaign_id, step_order, type, subject, body, delay_days, created_at
        FROM campaign_steps WHERE campaign_id=$1 ORDER BY step_order ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []*model.CampaignStep{}
	for rows.Next() {
		s := &model.CampaignStep{}
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.StepOrder, &s.Type, &s.Subject, &s.Body, &s.DelayDays, &s.CreatedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *StepRepository) Update(ctx context.Context, s *model.CampaignStep) error {
	query := `
        UPDATE campaign_steps SET type=$1, subject=$2, body=$3, delay_days=$4
        WHERE id=$5 AND campaign_id=$6
    `
	res, err := r.DB.ExecContext(ctx, query, s.Type, s.Subject, s.Body, s.DelayDays, s.ID, s.CampaignID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewStepNotFound(s.ID)
	}
	return nil
}

func (r *StepRepository) DeleteAndCompact(ctx context.Context, campaignID, stepID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var order int
	err = tx.QueryRowContext(ctx,
		`DELETE FROM campaign_steps WHERE id=$1 AND campaign_id=$2 RETURNING step_order`,
		stepID, campaignID,
	).Scan(&order)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperrors.NewStepNotFound(stepID)
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE campaign_steps SET step_order = step_order - 1 WHERE campaign_id=$1 AND step_order > $2`,
		campaignID, order,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *StepRepository) Reorder(ctx context.Context, campaignID string, stepIDs []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock the step set so a concurrent add or delete cannot slip between
	// the validation and the rewrite.
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM campaign_steps WHERE campaign_id=$1 FOR UPDATE`, campaignID)
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(stepIDs) != len(existing) {
		return apperrors.ErrStepCountMismatch
	}
	for _, id := range stepIDs {
		if !existing[id] {
			return fmt.Errorf("%w: step %s does not belong to campaign %s",
				apperrors.ErrStepCountMismatch, id, campaignID)
		}
		delete(existing, id)
	}

	// The unique (campaign_id, step_order) constraint is deferred, so the
	// intermediate duplicate orders inside this transaction are fine.
	for i, id := range stepIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE campaign_steps SET step_order=$1 WHERE id=$2`, i+1, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
