// internal/queue/queue.go
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClosed    = errors.New("queue closed")
	ErrEmptyType = errors.New("job type is required")
	ErrFull      = errors.New("queue full")
)

// defaultEnqueueTimeout bounds how long Enqueue waits for buffer space.
const defaultEnqueueTimeout = time.Second

// Job is a unit of background work. Delivery is at-least-once, so handlers
// must tolerate seeing the same job twice.
type Job struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Payload    map[string]string `json:"payload"`
	Attempt    int               `json:"attempt"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

func NewJob(jobType string, payload map[string]string) Job {
	return Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Run consumes jobs until ctx is canceled.
	Run(ctx context.Context, handler Handler) error
	Close() error
}

type Options struct {
	Workers     int
	MaxAttempts int
	RetryDelay  time.Duration
	// EnqueueTimeout is how long a producer waits for a full buffer to drain.
	EnqueueTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.EnqueueTimeout <= 0 {
		o.EnqueueTimeout = defaultEnqueueTimeout
	}
	return o
}

func prepare(job Job) (Job, error) {
	if job.Type == "" {
		return job, ErrEmptyType
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return job, nil
}

// backoff grows linearly with the attempt number.
func backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}
