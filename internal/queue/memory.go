// internal/queue/memory.go
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MemoryQueue is an in-process worker pool. Jobs are lost on restart.
type MemoryQueue struct {
	jobs   chan Job
	opts   Options
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(capacity int, opts Options) *MemoryQueue {
	if capacity < 1 {
		capacity = 1024
	}
	return &MemoryQueue{
		jobs: make(chan Job, capacity),
		opts: opts.normalized(),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	job, err := prepare(job)
	if err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
	}

	timer := time.NewTimer(q.opts.EnqueueTimeout)
	defer timer.Stop()

	select {
	case q.jobs <- job:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %d jobs waiting", ErrFull, cap(q.jobs))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Run(ctx context.Context, handler Handler) error {
	var workers sync.WaitGroup
	for i := 0; i < q.opts.Workers; i++ {
		workers.Add(1)
		go func(worker int) {
			defer workers.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-q.jobs:
					if !ok {
						return
					}
					q.process(ctx, worker, job, handler)
				}
			}
		}(i)
	}

	workers.Wait()
	return nil
}

func (q *MemoryQueue) process(ctx context.Context, worker int, job Job, handler Handler) {
	job.Attempt++
	err := safeHandle(ctx, handler, job)
	if err == nil {
		return
	}

	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": job.Type,
		"attempt":  job.Attempt,
		"worker":   worker,
	})

	if job.Attempt >= q.opts.MaxAttempts {
		entry.Error("Job failed, giving up")
		return
	}

	entry.Warn("Job failed, scheduling retry")
	time.AfterFunc(backoff(q.opts.RetryDelay, job.Attempt), func() {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			return
		}
		select {
		case q.jobs <- job:
		default:
			entry.Error("Queue full, dropping retry")
		}
	})
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}

// Len reports buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func safeHandle(ctx context.Context, handler Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return handler(ctx, job)
}

type panicError struct {
	value interface{}
}

func (p panicError) Error() string {
	return fmt.Sprintf("job handler panicked: %v", p.value)
}
