package model

import "time"

// EmailAccountStatus marks whether a connected mailbox is usable for sending.
// An authentication failure flips the account to ERROR, which removes it from
// sender rotation until the tenant reconnects it.
type EmailAccountStatus string

const (
	AccountActive EmailAccountStatus = "ACTIVE"
	AccountError  EmailAccountStatus = "ERROR"
)

// EmailAccount is a tenant's connected mailbox. AccessToken and RefreshToken
// are stored AES-GCM encrypted; only the delivery gateway ever decrypts them.
type EmailAccount struct {
	ID           string             `db:"id" json:"id"`
	TenantID     string             `db:"tenant_id" json:"tenant_id"`
	Email        string             `db:"email" json:"email"`
	AccessToken  string             `db:"access_token" json:"-"`
	RefreshToken string             `db:"refresh_token" json:"-"`
	Status       EmailAccountStatus `db:"status" json:"status"`
	LastUsedAt   *time.Time         `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}
