package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobRunColumns = `id, job_id, user_id, trigger, status, total_tasks, succeeded, failed,
	skipped_niches, error_message, started_at, completed_at`

func scanJobRun(row pgx.Row) (*JobRun, error) {
	var r JobRun
	err := row.Scan(&r.ID, &r.JobID, &r.UserID, &r.Trigger, &r.Status, &r.TotalTasks, &r.Succeeded,
		&r.Failed, &r.SkippedNiches, &r.ErrorMessage, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateJobRun opens a running job run
func (db *DB) CreateJobRun(ctx context.Context, jobID, userID uuid.UUID, trigger string) (*JobRun, error) {
	r, err := scanJobRun(db.pool.QueryRow(ctx,
		`INSERT INTO job_runs (job_id, user_id, trigger, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+jobRunColumns,
		jobID, userID, trigger, RunStatusRunning,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}
	return r, nil
}

// FinishJobRun writes the final counters and status of a run
func (db *DB) FinishJobRun(ctx context.Context, id uuid.UUID, result JobRunResult) (*JobRun, error) {
	var errMsg *string
	if result.ErrorMessage != "" {
		errMsg = &result.ErrorMessage
	}
	r, err := scanJobRun(db.pool.QueryRow(ctx,
		`UPDATE job_runs SET
		   status = $2, total_tasks = $3, succeeded = $4, failed = $5, skipped_niches = $6,
		   error_message = $7, completed_at = NOW()
		 WHERE id = $1
		 RETURNING `+jobRunColumns,
		id, result.Status, result.TotalTasks, result.Succeeded, result.Failed,
		StringArray(result.SkippedNiches), errMsg,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to finish job run: %w", err)
	}
	return r, nil
}

// GetJobRun retrieves a run owned by userID
func (db *DB) GetJobRun(ctx context.Context, userID, id uuid.UUID) (*JobRun, error) {
	r, err := scanJobRun(db.pool.QueryRow(ctx,
		`SELECT `+jobRunColumns+` FROM job_runs WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job run: %w", err)
	}
	return r, nil
}

// ListJobRuns lists runs of a job owned by userID, newest first
func (db *DB) ListJobRuns(ctx context.Context, userID, jobID uuid.UUID, limit int) ([]JobRun, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobRunColumns+` FROM job_runs
		 WHERE job_id = $1 AND user_id = $2
		 ORDER BY started_at DESC LIMIT $3`,
		jobID, userID, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}
	defer rows.Close()

	var out []JobRun
	for rows.Next() {
		r, err := scanJobRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
