package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/coldreach/coldreach-backend/internal/model"
)

// DueStep identifies an enrollment whose next sequence step is due.
type DueStep struct {
	TenantID   string
	CampaignID string
	LeadID     string
	StepID     string
}

type CampaignLeadRepositoryInterface interface {
	// Get returns nil, nil when the enrollment does not exist.
	Get(ctx context.Context, campaignID, leadID string) (*model.CampaignLead, error)
	Enroll(ctx context.Context, cl *model.CampaignLead) error
	ListPending(ctx context.Context, campaignID string) ([]*model.CampaignLead, error)
	ListByCampaign(ctx context.Context, campaignID string, offset, limit int) ([]*model.CampaignLead, int, error)
	// ActiveElsewhere reports whether the lead is ACTIVE in any campaign
	// other than campaignID. A lead runs in at most one campaign at a time.
	ActiveElsewhere(ctx context.Context, leadID, campaignID string) (bool, error)
	SetStatus(ctx context.Context, campaignID, leadID string, status model.CampaignLeadStatus) error
	// MarkSent commits a successful delivery: enrollment ACTIVE, step order
	// advanced, last-sent stamped, and the lead bumped NEW -> CONTACTED,
	// all in one transaction. The update is guarded so it only applies to
	// eligible rows that have not yet recorded this step; it returns false
	// when the guard rejects the write (stopped meanwhile, or redelivery).
	MarkSent(ctx context.Context, campaignID, leadID string, stepOrder int, at time.Time) (bool, error)
	// Stop sets the lead's global status and stops the enrollment in one
	// transaction. Used for replies, bounces and unsubscribes.
	Stop(ctx context.Context, campaignID, leadID string, leadStatus model.LeadStatus) error
	// ListDueForNextStep claims up to limit ACTIVE enrollments whose next
	// step delay has elapsed. Claimed rows are stamped so the scheduler
	// does not re-enqueue them every sweep; a stale claim is re-issued
	// after an hour, accepting a duplicate job over a lost one.
	ListDueForNextStep(ctx context.Context, now time.Time, limit int) ([]DueStep, error)
	// CompleteFinished moves ACTIVE enrollments past their final step to
	// COMPLETED. Returns the number transitioned.
	CompleteFinished(ctx context.Context) (int64, error)
}

type CampaignLeadRepository struct {
	DB *sql.DB
}

const campaignLeadColumns = `campaign_id, lead_id, status, current_step_order, last_sent_at, created_at, updated_at`

func (r *CampaignLeadRepository) Get(ctx context.Context, campaignID, leadID string) (*model.CampaignLead, error) {
	var cl model.CampaignLead
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+campaignLeadColumns+` FROM campaign_leads WHERE campaign_id=$1 AND lead_id=$2`,
		campaignID, leadID,
	).Scan(&cl.CampaignID, &cl.LeadID, &cl.Status, &cl.CurrentStepOrder, &cl.LastSentAt, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cl, nil
}

func (r *CampaignLeadRepository) Enroll(ctx context.Context, cl *model.CampaignLead) error {
	cl.CreatedAt = time.Now()
	if cl.Status == "" {
		cl.Status = model.EnrollmentPending
	}
	query := `
        INSERT INTO campaign_leads (campaign_id, lead_id, status, current_step_order, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.DB.ExecContext(ctx, query, cl.CampaignID, cl.LeadID, cl.Status, cl.CurrentStepOrder, cl.CreatedAt)
	return err
}

func (r *CampaignLeadRepository) ListPending(ctx context.Context, campaignID string) ([]*model.CampaignLead, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+campaignLeadColumns+` FROM campaign_leads WHERE campaign_id=$1 AND status='PENDING'`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaignLeads(rows)
}

func (r *CampaignLeadRepository) ListByCampaign(ctx context.Context, campaignID string, offset, limit int) ([]*model.CampaignLead, int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+campaignLeadColumns+` FROM campaign_leads
         WHERE campaign_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		campaignID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := scanCampaignLeads(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_leads WHERE campaign_id=$1`, campaignID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func scanCampaignLeads(rows *sql.Rows) ([]*model.CampaignLead, error) {
	list := []*model.CampaignLead{}
	for rows.Next() {
		cl := &model.CampaignLead{}
		if err := rows.Scan(&cl.CampaignID, &cl.LeadID, &cl.Status, &cl.CurrentStepOrder, &cl.LastSentAt, &cl.CreatedAt, &cl.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, cl)
	}
	return list, rows.Err()
}

func (r *CampaignLeadRepository) ActiveElsewhere(ctx context.Context, leadID, campaignID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM campaign_leads
            WHERE lead_id=$1 AND campaign_id<>$2 AND status='ACTIVE'
        )`, leadID, campaignID,
	).Scan(&exists)
	return exists, err
}

func (r *CampaignLeadRepository) SetStatus(ctx context.Context, campaignID, leadID string, status model.CampaignLeadStatus) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE campaign_leads SET status=$1, updated_at=now() WHERE campaign_id=$2 AND lead_id=$3`,
		status, campaignID, leadID)
	return err
}

func (r *CampaignLeadRepository) MarkSent(ctx context.Context, campaignID, leadID string, stepOrder int, at time.Time) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE campaign_leads
        SET status='ACTIVE', last_sent_at=$1, current_step_order=$2,
            next_enqueued_at=NULL, updated_at=now()
        WHERE campaign_id=$3 AND lead_id=$4
          AND status IN ('PENDING', 'ACTIVE')
          AND current_step_order < $2`,
		at, stepOrder, campaignID, leadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET status='CONTACTED' WHERE id=$1 AND status='NEW'`, leadID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *CampaignLeadRepository) Stop(ctx context.Context, campaignID, leadID string, leadStatus model.LeadStatus) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET status=$1 WHERE id=$2`, leadStatus, leadID); err != nil {
		return err
	}
	// Only eligible rows transition; a COMPLETED or FAILED enrollment keeps
	// its terminal state.
	if _, err := tx.ExecContext(ctx, `
        UPDATE campaign_leads SET status='STOPPED', updated_at=now()
        WHERE campaign_id=$1 AND lead_id=$2 AND status IN ('PENDING', 'ACTIVE')`,
		campaignID, leadID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CampaignLeadRepository) ListDueForNextStep(ctx context.Context, now time.Time, limit int) ([]DueStep, error) {
	rows, err := r.DB.QueryContext(ctx, `
        WITH due AS (
            SELECT cl.campaign_id, cl.lead_id, s.id AS step_id, c.tenant_id
            FROM campaign_leads cl
            JOIN campaigns c ON c.id = cl.campaign_id AND c.status = 'RUNNING'
            JOIN campaign_steps s ON s.campaign_id = cl.campaign_id
                AND s.step_order = cl.current_step_order + 1
            WHERE cl.status = 'ACTIVE'
              AND cl.last_sent_at IS NOT NULL
              AND cl.last_sent_at + make_interval(days => s.delay_days) <= $1
              AND (cl.next_enqueued_at IS NULL OR cl.next_enqueued_at <= $1 - interval '1 hour')
            ORDER BY cl.last_sent_at
            LIMIT $2
            FOR UPDATE OF cl SKIP LOCKED
        )
        UPDATE campaign_leads cl
        SET next_enqueued_at = $1
        FROM due
        WHERE cl.campaign_id = due.campaign_id AND cl.lead_id = due.lead_id
        RETURNING due.tenant_id, due.campaign_id, due.lead_id, due.step_id`,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DueStep{}
	for rows.Next() {
		var d DueStep
		if err := rows.Scan(&d.TenantID, &d.CampaignID, &d.LeadID, &d.StepID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *CampaignLeadRepository) CompleteFinished(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE campaign_leads cl SET status='COMPLETED', updated_at=now()
        WHERE cl.status='ACTIVE'
          AND cl.last_sent_at IS NOT NULL
          AND NOT EXISTS (
            SELECT 1 FROM campaign_steps s
            WHERE s.campaign_id = cl.campaign_id
              AND s.step_order > cl.current_step_order
          )`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
