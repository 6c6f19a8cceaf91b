package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/coldreach/coldreach-backend/internal/model"
)

type EmailAccountRepositoryInterface interface {
	Create(ctx context.Context, a *model.EmailAccount) error
	// PickActive selects the tenant's least-recently-used ACTIVE account
	// and stamps it used, spreading volume across connected mailboxes.
	// Returns nil, nil when the tenant has no ACTIVE account.
	PickActive(ctx context.Context, tenantID string) (*model.EmailAccount, error)
	SetStatus(ctx context.Context, id string, status model.EmailAccountStatus) error
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

type EmailAccountRepository struct {
	DB *sql.DB
}

func (r *EmailAccountRepository) Create(ctx context.Context, a *model.EmailAccount) error {
	a.CreatedAt = time.Now()
	if a.Status == "" {
		a.Status = model.AccountActive
	}
	query := `
        INSERT INTO email_accounts (id, tenant_id, email, access_token, refresh_token, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.DB.ExecContext(ctx, query,
		a.ID, a.TenantID, a.Email, a.AccessToken, a.RefreshToken, a.Status, a.CreatedAt)
	return err
}

func (r *EmailAccountRepository) PickActive(ctx context.Context, tenantID string) (*model.EmailAccount, error) {
	// SKIP LOCKED keeps concurrent workers from serializing on the same
	// row; each picks the next least-recently-used account instead.
	query := `
        UPDATE email_accounts SET last_used_at = now()
        WHERE id = (
            SELECT id FROM email_accounts
            WHERE tenant_id=$1 AND status='ACTIVE'
            ORDER BY last_used_at ASC NULLS FIRST
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, tenant_id, email, access_token, refresh_token, status, last_used_at, created_at
    `
	var a model.EmailAccount
	err := r.DB.QueryRowContext(ctx, query, tenantID).Scan(
		&a.ID, &a.TenantID, &a.Email, &a.AccessToken, &a.RefreshToken, &a.Status, &a.LastUsedAt, &a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *EmailAccountRepository) SetStatus(ctx context.Context, id string, status model.EmailAccountStatus) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE email_accounts SET status=$1 WHERE id=$2`, status, id)
	return err
}

func (r *EmailAccountRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_accounts WHERE tenant_id=$1`, tenantID).Scan(&n)
	return n, err
}
