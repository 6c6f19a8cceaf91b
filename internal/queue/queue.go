package queue

import (
	"context"
	"time"
)

// SendJob is the wire payload carried by the dispatch queue: one email to
// one lead for one step. This is the only persisted message format and its
// JSON field names must stay stable across producer and consumer versions.
type SendJob struct {
	TenantID   string `json:"tenant_id"`
	CampaignID string `json:"campaign_id"`
	LeadID     string `json:"lead_id"`
	StepID     string `json:"step_id"`
}

// Handler processes one delivered job. Returning nil acknowledges the job,
// including expected no-ops such as an ineligible lead. Returning an error
// triggers a redelivery with backoff up to the retry limit, after which the
// job is parked on the dead-letter queue for operator inspection.
//
// Delivery is at least once: a handler may see the same job twice and must
// guard its side effects with fresh-state checks.
type Handler func(ctx context.Context, job SendJob) error

// Queue is the durable job transport between enqueuers and the send worker.
type Queue interface {
	Publish(ctx context.Context, job SendJob) error
	PublishBatch(ctx context.Context, jobs []SendJob) error
	// PublishDelayed schedules the job to become visible after delay.
	PublishDelayed(ctx context.Context, job SendJob, delay time.Duration) error
	// Consume pulls jobs and invokes handler until ctx is cancelled.
	Consume(ctx context.Context, handler Handler) error
}

// RetryPolicy bounds redeliveries of failed jobs.
type RetryPolicy struct {
	// MaxRetries is the number of redeliveries after the first attempt.
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// Delay returns the backoff before retrying a job that has already been
// attempted `attempt` times (0-based for the first failure).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Backoff
	if d <= 0 {
		d = time.Second
	}
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
