package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"movierec/pkg/models"
)

// Queue is the durable job_runs table. A run moves queued -> running ->
// succeeded | failed, passing through queued again for each retry.
type Queue struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{DB: db, Now: time.Now}
}

const jobRunColumns = `id, name, args, state, attempts, status, last_error, run_after, created_at, updated_at`

func (q *Queue) Enqueue(ctx context.Context, name string, args Args) (*models.JobRun, error) {
	if args == nil {
		args = Args{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	id := uuid.NewString()
	now := q.Now().UTC()
	if _, err := q.DB.ExecContext(ctx, `
		INSERT INTO job_runs (id, name, args, state, attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
	`, id, name, string(raw), models.JobQueued, now, now, now); err != nil {
		return nil, fmt.Errorf("insert job run: %w", err)
	}
	return q.Get(ctx, id)
}

// ClaimNext atomically moves the oldest due queued run to running and
// returns it, or (nil, nil) when nothing is due.
func (q *Queue) ClaimNext(ctx context.Context) (*models.JobRun, error) {
	now := q.Now().UTC()
	row := q.DB.QueryRowContext(ctx, `
		UPDATE job_runs
		SET state = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM job_runs
			WHERE state = ? AND run_after <= ?
			ORDER BY run_after ASC, created_at ASC
			LIMIT 1
		)
		RETURNING id
	`, models.JobRunning, now, models.JobQueued, now)

	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job run: %w", err)
	}
	return q.Get(ctx, id)
}

// Complete records the outcome of a claimed run. A failed run goes back to
// the queue after retryDelay until maxAttempts is used up.
func (q *Queue) Complete(ctx context.Context, run *models.JobRun, res Result, maxAttempts int, retryDelay time.Duration) (*models.JobRun, error) {
	now := q.Now().UTC()
	state, runAfter, lastError := models.JobSucceeded, run.RunAfter, ""
	if !res.OK {
		lastError = res.Status
		if run.Attempts < maxAttempts {
			state, runAfter = models.JobQueued, now.Add(retryDelay)
		} else {
			state = models.JobFailed
		}
	}

	if _, err := q.DB.ExecContext(ctx, `
		UPDATE job_runs
		SET state = ?, status = ?, last_error = ?, run_after = ?, updated_at = ?
		WHERE id = ?
	`, state, res.Status, lastError, runAfter.UTC(), now, run.ID); err != nil {
		return nil, fmt.Errorf("complete job run %s: %w", run.ID, err)
	}
	return q.Get(ctx, run.ID)
}

// RequeueStale returns runs stuck in running for longer than d, e.g. after
// a crash, to the queue.
func (q *Queue) RequeueStale(ctx context.Context, d time.Duration) (int64, error) {
	now := q.Now().UTC()
	res, err := q.DB.ExecContext(ctx, `
		UPDATE job_runs SET state = ?, run_after = ?, updated_at = ?
		WHERE state = ? AND updated_at < ?
	`, models.JobQueued, now, now, models.JobRunning, now.Add(-d))
	if err != nil {
		return 0, fmt.Errorf("requeue stale runs: %w", err)
	}
	return res.RowsAffected()
}

// Get returns (nil, nil) for an unknown id.
func (q *Queue) Get(ctx context.Context, id string) (*models.JobRun, error) {
	row := q.DB.QueryRowContext(ctx, `SELECT `+jobRunColumns+` FROM job_runs WHERE id = ?`, id)
	run, err := scanJobRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan job run: %w", err)
	}
	return run, nil
}

// List returns runs newest first, optionally filtered by state.
func (q *Queue) List(ctx context.Context, state string, limit, offset int) ([]models.JobRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := q.DB.QueryContext(ctx, `
		SELECT `+jobRunColumns+`
		FROM job_runs
		WHERE (? = '' OR state = ?)
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?
	`, state, state, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.JobRun, 0, limit)
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJobRun(s scanner) (*models.JobRun, error) {
	var (
		run  models.JobRun
		args string
	)
	if err := s.Scan(
		&run.ID, &run.Name, &args, &run.State, &run.Attempts, &run.Status, &run.LastError,
		&run.RunAfter, &run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &run.Args); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
	}
	return &run, nil
}
