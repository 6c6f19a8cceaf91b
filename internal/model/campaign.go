package model

import (
	"fmt"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign.
// DRAFT -> RUNNING <-> PAUSED -> COMPLETED, with ERROR reachable from
// RUNNING on systemic failure.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignRunning   CampaignStatus = "RUNNING"
	CampaignPaused    CampaignStatus = "PAUSED"
	CampaignCompleted CampaignStatus = "COMPLETED"
	CampaignError     CampaignStatus = "ERROR"
)

// ParseCampaignStatus validates a raw status string at the API boundary so
// everything past the controller only ever sees known values.
func ParseCampaignStatus(s string) (CampaignStatus, error) {
	switch CampaignStatus(s) {
	case CampaignDraft, CampaignRunning, CampaignPaused, CampaignCompleted, CampaignError:
		return CampaignStatus(s), nil
	}
	return "", fmt.Errorf("unknown campaign status %q", s)
}

type Campaign struct {
	ID         string         `db:"id" json:"id"`
	TenantID   string         `db:"tenant_id" json:"tenant_id"`
	Name       string         `db:"name" json:"name"`
	Status     CampaignStatus `db:"status" json:"status"`
	DailyLimit int            `db:"daily_limit" json:"daily_limit"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
