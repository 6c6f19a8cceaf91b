package model

import "time"

// UsageMetric names a billable resource tracked against plan limits.
// SENDS and AI_REQUESTS are cumulative per billing period; INBOXES is
// state-based and compared against a live count of connected accounts.
type UsageMetric string

const (
	MetricSends      UsageMetric = "SENDS"
	MetricAIRequests UsageMetric = "AI_REQUESTS"
	MetricInboxes    UsageMetric = "INBOXES"
)

// Plan is a billing plan with per-metric limits.
type Plan struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	MonthlySends int    `db:"monthly_sends" json:"monthly_sends"`
	InboxLimit   int    `db:"inbox_limit" json:"inbox_limit"`
	AILimit      int    `db:"ai_limit" json:"ai_limit"`
}

// UsageCounter is one (tenant, metric, period) usage row. Counters are
// append-only; a new billing period implies a fresh row starting at zero.
type UsageCounter struct {
	TenantID string      `db:"tenant_id" json:"tenant_id"`
	Metric   UsageMetric `db:"metric" json:"metric"`
	Period   string      `db:"period" json:"period"`
	Count    int         `db:"count" json:"count"`
}

// CurrentPeriod formats t as the billing period key, e.g. "2026-08".
// Rolling into a new month implicitly resets every cumulative counter.
func CurrentPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}
