package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/albachteng/workq/internal/jobs"
)

// RedisBackend stores the active set in Redis: a sorted set scored by
// AvailableAt for eligibility ordering plus a hash per job. Jobs that are
// finished leave Redis entirely; permanent failures are parked on a failed
// list for host inspection.
type RedisBackend struct {
	client    *redis.Client
	queueName string
	registry  *jobs.Registry
	logger    *slog.Logger
}

func NewRedisBackend(addr string, db int, queueName string, registry *jobs.Registry, logger *slog.Logger) (*RedisBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBackend{
		client:    client,
		queueName: queueName,
		registry:  registry,
		logger:    logger,
	}, nil
}

func (b *RedisBackend) schedKey() string {
	return "workq:" + b.queueName + ":sched"
}

func (b *RedisBackend) failedKey() string {
	return "workq:" + b.queueName + ":failed"
}

func (b *RedisBackend) jobKey(id jobs.JobID) string {
	return "workq:" + b.queueName + ":job:" + string(id)
}

func (b *RedisBackend) Insert(ctx context.Context, job *jobs.Job) error {
	payload := job.QueueableData()

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.jobKey(job.ID()), map[string]any{
		"kind":          payload.Metadata.Kind,
		"data":          string(payload.Data),
		"attempts":      job.Attempts,
		"max_attempts":  job.MaxAttempts,
		"retry_wait_ms": job.RetryWait,
		"locked_at":     job.LockedAt,
		"cancelled":     0,
		"created_at":    job.CreatedAt.UnixMilli(),
	})
	pipe.ZAdd(ctx, b.schedKey(), redis.Z{
		Score:  float64(job.AvailableAt),
		Member: string(job.ID()),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (b *RedisBackend) NextJobs(ctx context.Context, limit int) ([]*jobs.Job, error) {
	now := time.Now().UnixMilli()

	// ZSET order is the AvailableAt order the scheduler needs.
	ids, err := b.client.ZRangeByScore(ctx, b.schedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	var eligible []*jobs.Job
	for _, id := range ids {
		if limit > 0 && len(eligible) >= limit {
			break
		}

		job, ok, err := b.loadJob(ctx, jobs.JobID(id), now)
		if err != nil {
			b.logger.Error("failed to restore stored job", "job_id", id, "error", err)
			continue
		}
		if !ok {
			continue
		}
		eligible = append(eligible, job)
	}

	return eligible, nil
}

// loadJob materializes one stored job and applies the locked/cancelled
// eligibility filters the sorted set cannot express.
func (b *RedisBackend) loadJob(ctx context.Context, id jobs.JobID, now int64) (*jobs.Job, bool, error) {
	fields, err := b.client.HGetAll(ctx, b.jobKey(id)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		// Hash expired or deleted; drop the dangling schedule entry.
		b.client.ZRem(ctx, b.schedKey(), string(id))
		return nil, false, nil
	}

	if fields["cancelled"] == "1" {
		return nil, false, nil
	}

	lockedAt, _ := strconv.ParseInt(fields["locked_at"], 10, 64)
	retryWait, _ := strconv.ParseInt(fields["retry_wait_ms"], 10, 64)
	if lockedAt != 0 && now < lockedAt+retryWait {
		return nil, false, nil
	}

	data := json.RawMessage(fields["data"])
	task, err := b.registry.Rebuild(jobs.Payload{
		Data:     data,
		Metadata: jobs.Metadata{Kind: fields["kind"]},
	})
	if err != nil {
		return nil, false, err
	}

	job := jobs.Restore(id, b.queueName, task, data)
	job.Attempts, _ = strconv.Atoi(fields["attempts"])
	job.MaxAttempts, _ = strconv.Atoi(fields["max_attempts"])
	job.RetryWait = retryWait
	job.LockedAt = lockedAt

	availableAt, err := b.client.ZScore(ctx, b.schedKey(), string(id)).Result()
	if err != nil {
		return nil, false, err
	}
	job.AvailableAt = int64(availableAt)

	if createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		job.CreatedAt = time.UnixMilli(createdAt)
	}

	return job, true, nil
}

func (b *RedisBackend) FailJob(ctx context.Context, job *jobs.Job, jobErr error) error {
	if jobErr == nil {
		jobErr = jobs.ErrAttemptFailed
	}

	err := b.client.HSet(ctx, b.jobKey(job.ID()), map[string]any{
		"attempts":   job.Attempts,
		"locked_at":  job.LockedAt,
		"last_error": jobErr.Error(),
	}).Err()
	if err != nil {
		return err
	}

	if hookErr := job.NotifyFailure(jobErr); hookErr != nil {
		b.logger.Error("failure hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *RedisBackend) FailJobForever(ctx context.Context, job *jobs.Job, jobErr error) error {
	if jobErr == nil {
		jobErr = jobs.ErrMaxAttempts
	}

	pipe := b.client.TxPipeline()
	pipe.ZRem(ctx, b.schedKey(), string(job.ID()))
	pipe.HSet(ctx, b.jobKey(job.ID()), map[string]any{
		"attempts":   job.Attempts,
		"last_error": jobErr.Error(),
	})
	pipe.LPush(ctx, b.failedKey(), string(job.ID()))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	b.logger.Error("job failed permanently",
		"job_id", job.ID(),
		"job_kind", job.Kind(),
		"attempts", job.Attempts,
		"error", jobErr)

	if hookErr := job.NotifyPermanentFailure(jobErr); hookErr != nil {
		b.logger.Error("permanent failure hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *RedisBackend) FinishJob(ctx context.Context, job *jobs.Job) error {
	pipe := b.client.TxPipeline()
	pipe.ZRem(ctx, b.schedKey(), string(job.ID()))
	pipe.Del(ctx, b.jobKey(job.ID()))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if hookErr := job.NotifySuccess(); hookErr != nil {
		b.logger.Error("success hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *RedisBackend) CancelJob(ctx context.Context, job *jobs.Job) error {
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.jobKey(job.ID()), "cancelled", 1)
	pipe.ZRem(ctx, b.schedKey(), string(job.ID()))
	_, err := pipe.Exec(ctx)
	return err
}

// FailedJobIDs lists the permanently failed jobs, most recent first.
func (b *RedisBackend) FailedJobIDs(ctx context.Context) ([]jobs.JobID, error) {
	raw, err := b.client.LRange(ctx, b.failedKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]jobs.JobID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, jobs.JobID(id))
	}
	return ids, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
