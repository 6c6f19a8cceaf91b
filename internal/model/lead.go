package model

import "time"

// LeadStatus is the global state of a contact across all campaigns.
// BOUNCED and UNSUBSCRIBED are terminal suppression states: a lead in either
// must never receive another send, whatever its per-campaign enrollment says.
type LeadStatus string

const (
	LeadNew          LeadStatus = "NEW"
	LeadContacted    LeadStatus = "CONTACTED"
	LeadReplied      LeadStatus = "REPLIED"
	LeadBounced      LeadStatus = "BOUNCED"
	LeadUnsubscribed LeadStatus = "UNSUBSCRIBED"
)

type Lead struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Email     string     `db:"email" json:"email"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Company   string     `db:"company" json:"company"`
	Status    LeadStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Suppressed reports whether the lead is in a terminal suppression state.
func (l *Lead) Suppressed() bool {
	return l.Status == LeadBounced || l.Status == LeadUnsubscribed
}
