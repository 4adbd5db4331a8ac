package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const snapshotColumns = `id, niche, summary, keywords, angles, products, provider, model, created_at`

func scanSnapshot(row pgx.Row) (*IntelligenceSnapshot, error) {
	var s IntelligenceSnapshot
	err := row.Scan(&s.ID, &s.Niche, &s.Summary, &s.Keywords, &s.Angles, &s.Products, &s.Provider, &s.Model, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSnapshot stores a new intelligence snapshot
func (db *DB) CreateSnapshot(ctx context.Context, s *IntelligenceSnapshot) (*IntelligenceSnapshot, error) {
	out, err := scanSnapshot(db.pool.QueryRow(ctx,
		`INSERT INTO intelligence_snapshots (niche, summary, keywords, angles, products, provider, model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+snapshotColumns,
		s.Niche, s.Summary, s.Keywords, s.Angles, s.Products, s.Provider, s.Model,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	return out, nil
}

// LatestSnapshot returns the newest snapshot for a niche
func (db *DB) LatestSnapshot(ctx context.Context, niche string) (*IntelligenceSnapshot, error) {
	s, err := scanSnapshot(db.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM intelligence_snapshots
		 WHERE niche = $1 ORDER BY created_at DESC LIMIT 1`, niche))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return s, nil
}
