package model

import "time"

// StepType is the kind of outreach a step performs. Only email exists today;
// the column is typed so follow-up channels slot in without a schema change.
type StepType string

const (
	StepEmail StepType = "EMAIL"
)

// CampaignStep is one templated message in a campaign sequence. StepOrder is
// 1-based and contiguous within a campaign: deleting a step compacts the
// orders above it, and reordering rewrites the full set.
type CampaignStep struct {
	ID         string    `db:"id" json:"id"`
	CampaignID string    `db:"campaign_id" json:"campaign_id"`
	StepOrder  int       `db:"step_order" json:"step_order"`
	Type       StepType  `db:"type" json:"type"`
	Subject    string    `db:"subject" json:"subject"`
	Body       string    `db:"body" json:"body"`
	DelayDays  int       `db:"delay_days" json:"delay_days"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
