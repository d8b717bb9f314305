package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is an at-least-once job list. Deliveries are moved atomically to a
// processing list and removed only after the handler returns.
type RedisQueue struct {
	client      *redis.Client
	key         string
	processing  string
	dead        string
	maxAttempts int
	pollTimeout time.Duration
	logger      *slog.Logger
}

type RedisOption func(*RedisQueue)

// WithMaxAttempts bounds redeliveries of a failing job before it is parked in the dead list.
func WithMaxAttempts(n int) RedisOption {
	return func(q *RedisQueue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

func WithPollTimeout(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.pollTimeout = d
		}
	}
}

func NewRedisQueue(client *redis.Client, key string, logger *slog.Logger, opts ...RedisOption) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RedisQueue{
		client:      client,
		key:         key,
		processing:  key + ":processing",
		dead:        key + ":dead",
		maxAttempts: 5,
		pollTimeout: 5 * time.Second,
		logger:      logger,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Publish pushes a job onto the list.
func (q *RedisQueue) Publish(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	q.logger.Info("redis.job.published", "protocol", job.Protocol, "job_id", job.ID)
	return nil
}

// Recover moves deliveries left in the processing list by a crashed consumer back onto the queue.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("requeue: %w", err)
		}
		n++
	}
	if n > 0 {
		q.logger.Warn("redis.jobs.recovered", "count", n)
	}
	return n, nil
}

// Consume runs handle for every delivery until ctx is canceled. Jobs are handled one
// at a time; run several consumers for parallelism.
func (q *RedisQueue) Consume(ctx context.Context, handle HandlerFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", q.pollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.logger.Warn("redis.poll.error", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		q.deliver(ctx, raw, handle)
	}
}

func (q *RedisQueue) deliver(ctx context.Context, raw string, handle HandlerFunc) {
	// acks must land even when the consumer is being stopped
	ackCtx := context.WithoutCancel(ctx)
	ack := func() {
		if err := q.client.LRem(ackCtx, q.processing, 1, raw).Err(); err != nil {
			q.logger.Error("redis.ack.failed", "error", err)
		}
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil || job.Protocol == "" {
		q.logger.Error("redis.job.malformed", "payload", raw, "error", err)
		q.park(ackCtx, raw)
		ack()
		return
	}

	err := handle(ctx, job)
	if err == nil || IsPermanent(err) {
		if err != nil {
			q.logger.Warn("redis.job.dropped", "protocol", job.Protocol, "error", err)
		}
		ack()
		return
	}

	job.Attempt++
	if job.Attempt >= q.maxAttempts {
		q.logger.Error("redis.job.exhausted", "protocol", job.Protocol, "attempts", job.Attempt, "error", err)
		b, _ := json.Marshal(job)
		q.park(ackCtx, string(b))
		ack()
		return
	}
	q.logger.Warn("redis.job.retry", "protocol", job.Protocol, "attempt", job.Attempt, "error", err)
	if perr := q.Publish(ackCtx, job); perr != nil {
		// leave the delivery in the processing list; Recover will pick it up
		q.logger.Error("redis.job.requeue_failed", "protocol", job.Protocol, "error", perr)
		return
	}
	ack()
}

func (q *RedisQueue) park(ctx context.Context, raw string) {
	if err := q.client.LPush(ctx, q.dead, raw).Err(); err != nil {
		q.logger.Error("redis.dead_letter.failed", "error", err)
	}
}

// permanent marks handler errors that redelivery cannot fix.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so the consumer acknowledges the delivery instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}
