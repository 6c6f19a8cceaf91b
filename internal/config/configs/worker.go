package configs

import "time"

// Worker configures the send worker pool and the per-job processing knobs.
type Worker struct {
	// Concurrency is the number of goroutines pulling jobs from the queue.
	Concurrency int `env:"CONCURRENCY" envDefault:"4"`
	// MaxRetries bounds redeliveries before a job is dead-lettered.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`
	// RetryBackoff is the base delay before the first retry; each further
	// attempt doubles it.
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"30s"`
	// JitterMin/JitterMax bound the randomized pre-send delay that keeps
	// outbound traffic from bursting.
	JitterMin time.Duration `env:"JITTER_MIN" envDefault:"1s"`
	JitterMax time.Duration `env:"JITTER_MAX" envDefault:"5s"`
	// SendTimeout bounds a single delivery call so a hung provider cannot
	// block the worker past the queue's own job timeout.
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"30s"`
	// SchedulerInterval is how often the step scheduler sweeps for
	// enrollments due for their next step.
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1m"`
	// SchedulerBatch bounds rows claimed per sweep.
	SchedulerBatch int `env:"SCHEDULER_BATCH" envDefault:"500"`
}
