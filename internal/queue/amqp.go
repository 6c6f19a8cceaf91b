package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

const (
	workQueue  = "campaign.sends"
	retryQueue = "campaign.sends.retry"
	deadQueue  = "campaign.sends.dead"

	retryHeader = "x-retry-count"
)

// AMQPQueue is the RabbitMQ-backed dispatch queue. Layout:
//
//	campaign.sends        durable work queue consumed by the workers
//	campaign.sends.retry  parking queue; messages carry a per-message TTL
//	                      and dead-letter back into campaign.sends, which
//	                      implements delayed retry without a broker plugin
//	campaign.sends.dead   terminal failures, kept for operator inspection
type AMQPQueue struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	policy  RetryPolicy
	workers int
	logger  *slog.Logger

	// OnDead, when set, is invoked after a job is parked in the dead
	// queue, letting the owner fail the enrollment it belonged to.
	OnDead func(SendJob)
}

// NewAMQPQueue dials the broker and declares the three queues. workers is
// the number of concurrent consumer goroutines Consume will run; prefetch
// bounds unacked deliveries on the channel.
func NewAMQPQueue(url string, workers, prefetch int, policy RetryPolicy, logger *slog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err = ch.QueueDeclare(workQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", workQueue, err)
	}
	if _, err = ch.QueueDeclare(retryQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": workQueue,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", retryQueue, err)
	}
	if _, err = ch.QueueDeclare(deadQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", deadQueue, err)
	}

	if prefetch > 0 {
		if err = ch.Qos(prefetch, 0, false); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}
	if workers < 1 {
		workers = 1
	}

	return &AMQPQueue{conn: conn, ch: ch, policy: policy, workers: workers, logger: logger}, nil
}

func (q *AMQPQueue) Publish(ctx context.Context, job SendJob) error {
	return q.publish(workQueue, job, 0, "")
}

func (q *AMQPQueue) PublishBatch(ctx context.Context, jobs []SendJob) error {
	for _, job := range jobs {
		if err := q.publish(workQueue, job, 0, ""); err != nil {
			return err
		}
	}
	return nil
}

func (q *AMQPQueue) PublishDelayed(ctx context.Context, job SendJob, delay time.Duration) error {
	return q.publish(retryQueue, job, 0, expiration(delay))
}

func (q *AMQPQueue) publish(routingKey string, job SendJob, retries int, expire string) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.ch.Publish("", routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Expiration:   expire,
		Headers:      amqp.Table{retryHeader: int32(retries)},
	})
}

// Consume runs the worker pool against the work queue until ctx is
// cancelled. Every delivery is acked exactly once: successful or no-op jobs
// directly, failed jobs after being re-published to the retry or dead queue.
func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := q.ch.Consume(workQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				q.handle(ctx, handler, d)
			}
		}()
	}

	<-ctx.Done()
	q.ch.Close()
	wg.Wait()
	return ctx.Err()
}

func (q *AMQPQueue) handle(ctx context.Context, handler Handler, d amqp.Delivery) {
	var job SendJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.logger.Error("dropping malformed job", "error", err)
		d.Ack(false)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	if retries >= q.policy.MaxRetries {
		q.logger.Error("job dead-lettered",
			"campaign_id", job.CampaignID,
			"lead_id", job.LeadID,
			"attempts", retries+1,
			"error", err,
		)
		if pubErr := q.publish(deadQueue, job, retries, ""); pubErr != nil {
			// Leave the delivery unacked so the broker redelivers it
			// rather than losing the job.
			q.logger.Error("dead-letter publish failed", "error", pubErr)
			d.Nack(false, true)
			return
		}
		d.Ack(false)
		if q.OnDead != nil {
			q.OnDead(job)
		}
		return
	}

	delay := q.policy.Delay(retries)
	q.logger.Warn("job failed, scheduling retry",
		"campaign_id", job.CampaignID,
		"lead_id", job.LeadID,
		"attempt", retries+1,
		"retry_in", delay,
		"error", err,
	)
	if pubErr := q.publish(retryQueue, job, retries+1, expiration(delay)); pubErr != nil {
		q.logger.Error("retry publish failed", "error", pubErr)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// Close releases the channel and connection.
func (q *AMQPQueue) Close() error {
	q.ch.Close()
	return q.conn.Close()
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func expiration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}
