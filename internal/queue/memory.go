package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type memJob struct {
	job     SendJob
	attempt int
}

// MemQueue is a process-local Queue with the same retry and dead-letter
// semantics as the AMQP implementation. It backs tests and single-binary
// deployments where the API server consumes its own enqueues. Not durable:
// a crash loses in-flight jobs.
type MemQueue struct {
	jobs    chan memJob
	policy  RetryPolicy
	workers int
	logger  *slog.Logger

	// OnDead mirrors AMQPQueue.OnDead. Set before Consume.
	OnDead func(SendJob)

	pending atomic.Int64

	mu   sync.Mutex
	dead []SendJob
}

func NewMemQueue(buffer, workers int, policy RetryPolicy, logger *slog.Logger) *MemQueue {
	if buffer < 1 {
		buffer = 1024
	}
	if workers < 1 {
		workers = 1
	}
	return &MemQueue{
		jobs:    make(chan memJob, buffer),
		policy:  policy,
		workers: workers,
		logger:  logger,
	}
}

func (q *MemQueue) Publish(ctx context.Context, job SendJob) error {
	q.pending.Add(1)
	select {
	case q.jobs <- memJob{job: job}:
		return nil
	case <-ctx.Done():
		q.pending.Add(-1)
		return ctx.Err()
	}
}

func (q *MemQueue) PublishBatch(ctx context.Context, jobs []SendJob) error {
	for _, job := range jobs {
		if err := q.Publish(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (q *MemQueue) PublishDelayed(ctx context.Context, job SendJob, delay time.Duration) error {
	q.schedule(memJob{job: job}, delay)
	return nil
}

func (q *MemQueue) schedule(j memJob, delay time.Duration) {
	q.pending.Add(1)
	time.AfterFunc(delay, func() {
		q.jobs <- j
	})
}

// Consume runs the worker pool until ctx is cancelled.
func (q *MemQueue) Consume(ctx context.Context, handler Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-q.jobs:
					q.handle(ctx, handler, j)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (q *MemQueue) handle(ctx context.Context, handler Handler, j memJob) {
	err := handler(ctx, j.job)
	if err == nil {
		q.pending.Add(-1)
		return
	}

	if j.attempt >= q.policy.MaxRetries {
		q.logger.Error("job dead-lettered",
			"campaign_id", j.job.CampaignID,
			"lead_id", j.job.LeadID,
			"attempts", j.attempt+1,
			"error", err,
		)
		q.mu.Lock()
		q.dead = append(q.dead, j.job)
		q.mu.Unlock()
		q.pending.Add(-1)
		if q.OnDead != nil {
			q.OnDead(j.job)
		}
		return
	}

	delay := q.policy.Delay(j.attempt)
	q.logger.Warn("job failed, scheduling retry",
		"campaign_id", j.job.CampaignID,
		"lead_id", j.job.LeadID,
		"attempt", j.attempt+1,
		"retry_in", delay,
		"error", err,
	)
	q.schedule(memJob{job: j.job, attempt: j.attempt + 1}, delay)
	q.pending.Add(-1)
}

// Pending reports jobs enqueued or scheduled but not yet finally resolved.
func (q *MemQueue) Pending() int {
	return int(q.pending.Load())
}

// Dead returns a copy of the dead-lettered jobs.
func (q *MemQueue) Dead() []SendJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]SendJob, len(q.dead))
	copy(out, q.dead)
	return out
}
