package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/coldreach/coldreach-backend/internal/model"
)

type MetricsRepositoryInterface interface {
	// RecordEvent bumps the daily counters for the tenant and, when set,
	// the campaign and sending account, in one transaction.
	RecordEvent(ctx context.Context, ev model.AnalyticsEvent) error
}

type MetricsRepository struct {
	DB *sql.DB
}

// The VALUES clause computes 0/1 deltas per counter from the event type and
// the conflict branch adds the excluded deltas onto the existing row, so a
// single statement handles both the first event of a day and every later one.
func (r *MetricsRepository) RecordEvent(ctx context.Context, ev model.AnalyticsEvent) error {
	day := time.Now().UTC().Truncate(24 * time.Hour)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO tenant_metrics (tenant_id, date, sent_count, reply_count)
        VALUES ($1, $2,
            CASE WHEN $3 = 'SENT' THEN 1 ELSE 0 END,
            CASE WHEN $3 = 'REPLY' THEN 1 ELSE 0 END)
        ON CONFLICT (tenant_id, date) DO UPDATE SET
            sent_count  = tenant_metrics.sent_count + excluded.sent_count,
            reply_count = tenant_metrics.reply_count + excluded.reply_count`,
		ev.TenantID, day, ev.Type)
	if err != nil {
		return err
	}

	if ev.CampaignID != "" {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO campaign_metrics (campaign_id, date, sent_count, reply_count, bounce_count, error_count)
            VALUES ($1, $2,
                CASE WHEN $3 = 'SENT' THEN 1 ELSE 0 END,
                CASE WHEN $3 = 'REPLY' THEN 1 ELSE 0 END,
                CASE WHEN $3 = 'BOUNCE' THEN 1 ELSE 0 END,
                CASE WHEN $3 = 'ERROR' THEN 1 ELSE 0 END)
            ON CONFLICT (campaign_id, date) DO UPDATE SET
                sent_count   = campaign_metrics.sent_count + excluded.sent_count,
                reply_count  = campaign_metrics.reply_count + excluded.reply_count,
                bounce_count = campaign_metrics.bounce_count + excluded.bounce_count,
                error_count  = campaign_metrics.error_count + excluded.error_count`,
			ev.CampaignID, day, ev.Type)
		if err != nil {
			return err
		}
	}

	if ev.EmailAccountID != "" {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO account_metrics (email_account_id, date, sent_count, reply_count, bounce_count)
            VALUES ($1, $2,
                CASE WHEN $3 = 'SENT' THEN 1 ELSE 0 END,
                CASE WHEN $3 = 'REPLY' THEN 1 ELSE 0 END,
                CASE WHEN $3 = 'BOUNCE' THEN 1 ELSE 0 END)
            ON CONFLICT (email_account_id, date) DO UPDATE SET
                sent_count   = account_metrics.sent_count + excluded.sent_count,
                reply_count  = account_metrics.reply_count + excluded.reply_count,
                bounce_count = account_metrics.bounce_count + excluded.bounce_count`,
			ev.EmailAccountID, day, ev.Type)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
