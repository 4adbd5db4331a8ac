package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const webhookDeliveryColumns = `id, run_id, job_id, delivery_id, url, event, status_code, attempts,
	success, error, duration_ms, created_at`

// CreateWebhookDelivery records the outcome of delivering one webhook event
func (db *DB) CreateWebhookDelivery(ctx context.Context, d *WebhookDelivery) (*WebhookDelivery, error) {
	var out WebhookDelivery
	err := db.pool.QueryRow(ctx,
		`INSERT INTO webhook_deliveries
		   (run_id, job_id, delivery_id, url, event, status_code, attempts, success, error, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+webhookDeliveryColumns,
		d.RunID, d.JobID, d.DeliveryID, d.URL, d.Event, d.StatusCode, d.Attempts, d.Success, d.Error, d.DurationMs,
	).Scan(&out.ID, &out.RunID, &out.JobID, &out.DeliveryID, &out.URL, &out.Event, &out.StatusCode,
		&out.Attempts, &out.Success, &out.Error, &out.DurationMs, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return &out, nil
}

// ListWebhookDeliveries lists deliveries for a run owned by userID
func (db *DB) ListWebhookDeliveries(ctx context.Context, userID, runID uuid.UUID) ([]WebhookDelivery, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT d.id, d.run_id, d.job_id, d.delivery_id, d.url, d.event, d.status_code, d.attempts,
		        d.success, d.error, d.duration_ms, d.created_at
		 FROM webhook_deliveries d
		 JOIN job_runs r ON r.id = d.run_id
		 WHERE d.run_id = $1 AND r.user_id = $2
		 ORDER BY d.created_at`,
		runID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.RunID, &d.JobID, &d.DeliveryID, &d.URL, &d.Event, &d.StatusCode,
			&d.Attempts, &d.Success, &d.Error, &d.DurationMs, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
