package model

import "time"

// CampaignLeadStatus tracks one lead's progress through one campaign.
// Transitions are monotonic: once STOPPED, COMPLETED or FAILED a row never
// returns to PENDING or ACTIVE, which is what makes last-write-wins on the
// status column safe without row locks.
type CampaignLeadStatus string

const (
	EnrollmentPending   CampaignLeadStatus = "PENDING"
	EnrollmentActive    CampaignLeadStatus = "ACTIVE"
	EnrollmentStopped   CampaignLeadStatus = "STOPPED"
	EnrollmentCompleted CampaignLeadStatus = "COMPLETED"
	EnrollmentFailed    CampaignLeadStatus = "FAILED"
)

// CampaignLead is the enrollment record joining a lead to a campaign.
// Identity is the (campaign, lead) pair.
type CampaignLead struct {
	CampaignID       string             `db:"campaign_id" json:"campaign_id"`
	LeadID           string             `db:"lead_id" json:"lead_id"`
	Status           CampaignLeadStatus `db:"status" json:"status"`
	CurrentStepOrder int                `db:"current_step_order" json:"current_step_order"`
	LastSentAt       *time.Time         `db:"last_sent_at" json:"last_sent_at,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        *time.Time         `db:"updated_at" json:"updated_at,omitempty"`
}

// Eligible reports whether the enrollment may still receive sends.
func (cl *CampaignLead) Eligible() bool {
	return cl.Status == EnrollmentPending || cl.Status == EnrollmentActive
}
