// internal/queue/redis.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const blockTimeout = 2 * time.Second

// RedisQueue keeps pending jobs in a Redis list. A job moves to a processing
// list while a worker owns it and is removed only after the handler returns,
// so jobs held by a crashed worker are recovered on the next Run.
type RedisQueue struct {
	client        *redis.Client
	key           string
	processingKey string
	opts          Options
}

func NewRedisQueue(client *redis.Client, key string, opts Options) *RedisQueue {
	return &RedisQueue{
		client:        client,
		key:           key,
		processingKey: key + ":processing",
		opts:          opts.normalized(),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	job, err := prepare(job)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Run(ctx context.Context, handler Handler) error {
	if err := q.recover(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < q.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			q.work(ctx, worker, handler)
		}(i)
	}
	wg.Wait()
	return nil
}

// recover puts jobs abandoned in the processing list back on the queue.
func (q *RedisQueue) recover(ctx context.Context) error {
	for {
		err := q.client.LMove(ctx, q.processingKey, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to recover in-flight jobs: %w", err)
		}
	}
}

func (q *RedisQueue) work(ctx context.Context, worker int, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processingKey, "RIGHT", "LEFT", blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).WithField("worker", worker).Warn("Queue read failed")
			time.Sleep(time.Second)
			continue
		}

		q.process(ctx, worker, raw, handler)
	}
}

func (q *RedisQueue) process(ctx context.Context, worker int, raw string, handler Handler) {
	// Acknowledge with a fresh context so shutdown does not strand the job.
	ackCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := q.client.LRem(ackCtx, q.processingKey, 1, raw).Err(); err != nil {
			logrus.WithError(err).Error("Failed to acknowledge job")
		}
	}()

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		logrus.WithError(err).WithField("worker", worker).Error("Dropping undecodable job")
		return
	}

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
	select {
	case <-time.After(backoff(q.opts.RetryDelay, job.Attempt)):
	case <-ctx.Done():
	}
	if err := q.Enqueue(ackCtx, job); err != nil {
		entry.WithError(err).Error("Failed to requeue job")
	}
}

func (q *RedisQueue) Close() error {
	return nil
}

// Depth reports pending and in-flight job counts.
func (q *RedisQueue) Depth(ctx context.Context) (pending, inFlight int64, err error) {
	pending, err = q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, 0, err
	}
	inFlight, err = q.client.LLen(ctx, q.processingKey).Result()
	return pending, inFlight, err
}
