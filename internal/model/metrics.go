package model

// EventType classifies a delivery event for the analytics counters.
type EventType string

const (
	EventSent   EventType = "SENT"
	EventReply  EventType = "REPLY"
	EventBounce EventType = "BOUNCE"
	EventError  EventType = "ERROR"
)

// AnalyticsEvent is a single delivery event attributed to a tenant, and
// optionally to a campaign and a sending account. Tracking is fire and
// forget: a lost event skews a dashboard, never a send.
type AnalyticsEvent struct {
	TenantID       string    `json:"tenant_id"`
	CampaignID     string    `json:"campaign_id,omitempty"`
	EmailAccountID string    `json:"email_account_id,omitempty"`
	Type           EventType `json:"type"`
}
