package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/albachteng/workq/internal/jobs"
)

// SQLiteBackend is a durable backend. Finished, permanently failed and
// cancelled jobs leave the active set via the status column but keep their
// rows so the host can inspect outcomes. A job interrupted by a crash is
// still active and becomes eligible again once its retry cooldown elapses,
// so redelivery is the recovery mechanism.
type SQLiteBackend struct {
	db        *sql.DB
	queueName string
	registry  *jobs.Registry
	logger    *slog.Logger
}

// NewSQLiteBackend opens (or creates) the database at dbPath and scopes it
// to one queue. The registry supplies task factories for rebuilding stored
// jobs.
func NewSQLiteBackend(dbPath, queueName string, registry *jobs.Registry, logger *slog.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &SQLiteBackend{db: db, queueName: queueName, registry: registry, logger: logger}
	if err := b.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		queue TEXT NOT NULL,
		kind TEXT NOT NULL,
		data BLOB NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		retry_wait_ms INTEGER NOT NULL DEFAULT 0,
		locked_at INTEGER NOT NULL DEFAULT 0,
		available_at INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP
	);
	`

	if _, err := b.db.Exec(schema); err != nil {
		return err
	}

	indexSchema := `CREATE INDEX IF NOT EXISTS idx_jobs_eligibility ON jobs(queue, status, available_at ASC);`
	_, err := b.db.Exec(indexSchema)
	return err
}

func (b *SQLiteBackend) Insert(ctx context.Context, job *jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := job.QueueableData()

	query := `
		INSERT INTO jobs (id, queue, kind, data, status, attempts, max_attempts, retry_wait_ms, locked_at, available_at, cancelled, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'active', ?, ?, ?, ?, ?, 0, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		string(job.ID()),
		job.Queue,
		payload.Metadata.Kind,
		[]byte(payload.Data),
		job.Attempts,
		job.MaxAttempts,
		job.RetryWait,
		job.LockedAt,
		job.AvailableAt,
		job.CreatedAt,
		time.Now(),
	)

	return err
}

func (b *SQLiteBackend) NextJobs(ctx context.Context, limit int) ([]*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	query := `
		SELECT id, queue, kind, data, attempts, max_attempts, retry_wait_ms, locked_at, available_at, created_at
		FROM jobs
		WHERE queue = ?
		  AND status = 'active'
		  AND cancelled = 0
		  AND available_at <= ?
		  AND (locked_at = 0 OR locked_at + retry_wait_ms <= ?)
		ORDER BY available_at ASC
	`
	args := []any{b.queueName, now, now}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eligible []*jobs.Job
	for rows.Next() {
		job, err := b.scanJob(rows)
		if err != nil {
			b.logger.Error("failed to restore stored job", "error", err)
			continue
		}
		eligible = append(eligible, job)
	}

	return eligible, rows.Err()
}

func (b *SQLiteBackend) scanJob(rows *sql.Rows) (*jobs.Job, error) {
	var (
		id        string
		queueName string
		kind      string
		data      []byte
		attempts  int
		maxAtt    int
		retryWait int64
		lockedAt  int64
		availAt   int64
		createdAt time.Time
	)

	if err := rows.Scan(&id, &queueName, &kind, &data, &attempts, &maxAtt, &retryWait, &lockedAt, &availAt, &createdAt); err != nil {
		return nil, err
	}

	task, err := b.registry.Rebuild(jobs.Payload{
		Data:     json.RawMessage(data),
		Metadata: jobs.Metadata{Kind: kind},
	})
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}

	job := jobs.Restore(jobs.JobID(id), queueName, task, json.RawMessage(data))
	job.Attempts = attempts
	job.MaxAttempts = maxAtt
	job.RetryWait = retryWait
	job.LockedAt = lockedAt
	job.AvailableAt = availAt
	job.CreatedAt = createdAt
	return job, nil
}

func (b *SQLiteBackend) FailJob(ctx context.Context, job *jobs.Job, jobErr error) error {
	if jobErr == nil {
		jobErr = jobs.ErrAttemptFailed
	}

	query := `
		UPDATE jobs
		SET attempts = ?, locked_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := b.db.ExecContext(ctx, query,
		job.Attempts, job.LockedAt, jobErr.Error(), time.Now(), string(job.ID()))
	if err != nil {
		return err
	}

	if hookErr := job.NotifyFailure(jobErr); hookErr != nil {
		b.logger.Error("failure hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *SQLiteBackend) FailJobForever(ctx context.Context, job *jobs.Job, jobErr error) error {
	if jobErr == nil {
		jobErr = jobs.ErrMaxAttempts
	}

	query := `
		UPDATE jobs
		SET status = 'failed', attempts = ?, last_error = ?, updated_at = ?, processed_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := b.db.ExecContext(ctx, query,
		job.Attempts, jobErr.Error(), now, now, string(job.ID()))
	if err != nil {
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

func (b *SQLiteBackend) FinishJob(ctx context.Context, job *jobs.Job) error {
	query := `
		UPDATE jobs
		SET status = 'done', attempts = ?, updated_at = ?, processed_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := b.db.ExecContext(ctx, query, job.Attempts, now, now, string(job.ID()))
	if err != nil {
		return err
	}

	if hookErr := job.NotifySuccess(); hookErr != nil {
		b.logger.Error("success hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *SQLiteBackend) CancelJob(ctx context.Context, job *jobs.Job) error {
	query := `
		UPDATE jobs
		SET status = 'cancelled', cancelled = 1, updated_at = ?, processed_at = ?
		WHERE id = ? AND status = 'active'
	`
	now := time.Now()
	_, err := b.db.ExecContext(ctx, query, now, now, string(job.ID()))
	return err
}

// JobStatus reports the stored status of a job, for host inspection.
func (b *SQLiteBackend) JobStatus(ctx context.Context, id jobs.JobID) (string, error) {
	var status string
	err := b.db.QueryRowContext(ctx,
		`SELECT status FROM jobs WHERE id = ?`, string(id)).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
