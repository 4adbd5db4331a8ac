package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, user_id, name, cron_expression, timezone, niches, products_per_niche,
	template_types, tones, platforms, preferred_provider, spartan, webhook_url, webhook_secret,
	active, last_run_at, next_run_at, consecutive_failures, created_at, updated_at`

func scanJob(row pgx.Row) (*ScheduledJob, error) {
	var j ScheduledJob
	err := row.Scan(&j.ID, &j.UserID, &j.Name, &j.CronExpression, &j.Timezone, &j.Niches, &j.ProductsPerNiche,
		&j.TemplateTypes, &j.Tones, &j.Platforms, &j.PreferredProvider, &j.Spartan, &j.WebhookURL, &j.WebhookSecret,
		&j.Active, &j.LastRunAt, &j.NextRunAt, &j.ConsecutiveFailures, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]ScheduledJob, error) {
	defer rows.Close()
	var out []ScheduledJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// CreateJob inserts a scheduled job for userID
func (db *DB) CreateJob(ctx context.Context, userID uuid.UUID, in *JobInput) (*ScheduledJob, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`INSERT INTO scheduled_jobs
		   (user_id, name, cron_expression, timezone, niches, products_per_niche, template_types, tones,
		    platforms, preferred_provider, spartan, webhook_url, webhook_secret, active, next_run_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING `+jobColumns,
		userID, in.Name, in.CronExpression, in.Timezone, StringArray(in.Niches), in.ProductsPerNiche,
		StringArray(in.TemplateTypes), StringArray(in.Tones), StringArray(in.Platforms), in.PreferredProvider,
		in.Spartan, in.WebhookURL, in.WebhookSecret, in.Active, in.NextRunAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return j, nil
}

// GetJob retrieves a job owned by userID
func (db *DB) GetJob(ctx context.Context, userID, id uuid.UUID) (*ScheduledJob, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// GetJobByID retrieves a job regardless of owner, for the scheduler
func (db *DB) GetJobByID(ctx context.Context, id uuid.UUID) (*ScheduledJob, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobs lists a user's jobs, newest first
func (db *DB) ListJobs(ctx context.Context, userID uuid.UUID) ([]ScheduledJob, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return collectJobs(rows)
}

// ListActiveJobs lists every active job across tenants
func (db *DB) ListActiveJobs(ctx context.Context) ([]ScheduledJob, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	return collectJobs(rows)
}

// UpdateJob replaces the editable fields of a job owned by userID.
// An empty WebhookSecret keeps the stored secret.
func (db *DB) UpdateJob(ctx context.Context, userID, id uuid.UUID, in *JobInput) (*ScheduledJob, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`UPDATE scheduled_jobs SET
		   name = $3, cron_expression = $4, timezone = $5, niches = $6, products_per_niche = $7,
		   template_types = $8, tones = $9, platforms = $10, preferred_provider = $11, spartan = $12,
		   webhook_url = $13,
		   webhook_secret = CASE WHEN $14 = '' THEN webhook_secret ELSE $14 END,
		   active = $15, next_run_at = $16,
		   consecutive_failures = CASE WHEN $15 AND NOT active THEN 0 ELSE consecutive_failures END,
		   updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+jobColumns,
		id, userID, in.Name, in.CronExpression, in.Timezone, StringArray(in.Niches), in.ProductsPerNiche,
		StringArray(in.TemplateTypes), StringArray(in.Tones), StringArray(in.Platforms), in.PreferredProvider,
		in.Spartan, in.WebhookURL, in.WebhookSecret, in.Active, in.NextRunAt,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return j, nil
}

// SetJobActive pauses or resumes a job owned by userID. Resuming resets the failure counter.
func (db *DB) SetJobActive(ctx context.Context, userID, id uuid.UUID, active bool, nextRunAt *time.Time) (*ScheduledJob, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`UPDATE scheduled_jobs SET
		   active = $3, next_run_at = $4,
		   consecutive_failures = CASE WHEN $3 THEN 0 ELSE consecutive_failures END,
		   updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+jobColumns,
		id, userID, active, nextRunAt,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to set job active: %w", err)
	}
	return j, nil
}

// DeleteJob deletes a job owned by userID
func (db *DB) DeleteJob(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordJobOutcome stores last/next run times and the failure streak after a
// run, deactivating the job when the streak reaches the configured maximum.
func (db *DB) RecordJobOutcome(ctx context.Context, id uuid.UUID, outcome JobOutcome) (*ScheduledJob, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`UPDATE scheduled_jobs SET
		   last_run_at = $2,
		   next_run_at = $3,
		   consecutive_failures = CASE WHEN $4 THEN consecutive_failures + 1 ELSE 0 END,
		   active = CASE
		     WHEN $4 AND $5 > 0 AND consecutive_failures + 1 >= $5 THEN FALSE
		     ELSE active END,
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+jobColumns,
		id, outcome.RanAt, outcome.NextRunAt, outcome.Failed, outcome.MaxConsecutiveFailures,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to record job outcome: %w", err)
	}
	return j, nil
}
