package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const generationColumns = `id, user_id, job_run_id, niche, product_name, template_type, tone,
	platforms, content, spartan, provider, model, fallback_used, latency_ms, rating, created_at`

func scanGeneration(row pgx.Row) (*ContentGeneration, error) {
	var g ContentGeneration
	var contentJSON []byte
	var rating *int16
	err := row.Scan(&g.ID, &g.UserID, &g.JobRunID, &g.Niche, &g.ProductName, &g.TemplateType, &g.Tone,
		&g.Platforms, &contentJSON, &g.Spartan, &g.Provider, &g.Model, &g.FallbackUsed, &g.LatencyMs,
		&rating, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	if rating != nil {
		r := int(*rating)
		g.Rating = &r
	}
	if len(contentJSON) > 0 {
		if err := json.Unmarshal(contentJSON, &g.Content); err != nil {
			return nil, fmt.Errorf("failed to decode generation content: %w", err)
		}
	}
	return &g, nil
}

// CreateGeneration stores a generated piece of content
func (db *DB) CreateGeneration(ctx context.Context, input *GenerationInput) (*ContentGeneration, error) {
	contentJSON, err := json.Marshal(input.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}

	g, err := scanGeneration(db.pool.QueryRow(ctx,
		`INSERT INTO content_generations
		   (user_id, job_run_id, niche, product_name, template_type, tone, platforms, content,
		    spartan, provider, model, fallback_used, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+generationColumns,
		input.UserID, input.JobRunID, input.Niche, input.ProductName, input.TemplateType, input.Tone,
		StringArray(input.Platforms), contentJSON, input.Spartan, input.Provider, input.Model,
		input.FallbackUsed, input.LatencyMs,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation: %w", err)
	}
	return g, nil
}

// GetGeneration retrieves a generation owned by userID
func (db *DB) GetGeneration(ctx context.Context, userID, id uuid.UUID) (*ContentGeneration, error) {
	g, err := scanGeneration(db.pool.QueryRow(ctx,
		`SELECT `+generationColumns+` FROM content_generations WHERE id = $1 AND user_id = $2`,
		id, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return g, nil
}

// ListGenerations lists a user's generations, newest first
func (db *DB) ListGenerations(ctx context.Context, userID uuid.UUID, filters GenerationFilters) ([]ContentGeneration, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}

	if filters.Niche != "" {
		args = append(args, filters.Niche)
		conditions = append(conditions, fmt.Sprintf("niche = $%d", len(args)))
	}
	if filters.JobRunID != nil {
		args = append(args, *filters.JobRunID)
		conditions = append(conditions, fmt.Sprintf("job_run_id = $%d", len(args)))
	}

	args = append(args, clampLimit(filters.Limit, 50, 200))
	limitArg := len(args)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, offset)
	offsetArg := len(args)

	query := fmt.Sprintf(`SELECT %s FROM content_generations WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		generationColumns, strings.Join(conditions, " AND "), limitArg, offsetArg)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var out []ContentGeneration
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// DeleteGeneration deletes a generation owned by userID
func (db *DB) DeleteGeneration(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM content_generations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RateGeneration sets the 1..5 rating of a generation owned by userID
func (db *DB) RateGeneration(ctx context.Context, userID, id uuid.UUID, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE content_generations SET rating = $1 WHERE id = $2 AND user_id = $3`,
		rating, id, userID)
	if err != nil {
		return fmt.Errorf("failed to rate generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetGenerationStats aggregates a user's generations
func (db *DB) GetGenerationStats(ctx context.Context, userID uuid.UUID) (*GenerationStats, error) {
	stats := &GenerationStats{ByProvider: map[string]int{}, ByNiche: []NicheStats{}}

	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(rating), AVG(rating)::float8, COUNT(*) FILTER (WHERE fallback_used)
		 FROM content_generations WHERE user_id = $1`, userID,
	).Scan(&stats.Total, &stats.Rated, &stats.AverageRating, &stats.FallbackCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation totals: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT niche, COUNT(*), COUNT(rating), AVG(rating)::float8
		 FROM content_generations WHERE user_id = $1
		 GROUP BY niche ORDER BY COUNT(*) DESC, niche`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get niche stats: %w", err)
	}
	for rows.Next() {
		var ns NicheStats
		if err := rows.Scan(&ns.Niche, &ns.Count, &ns.Rated, &ns.AverageRating); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan niche stats: %w", err)
		}
		stats.ByNiche = append(stats.ByNiche, ns)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.pool.Query(ctx,
		`SELECT provider, COUNT(*) FROM content_generations WHERE user_id = $1 GROUP BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, fmt.Errorf("failed to scan provider stats: %w", err)
		}
		stats.ByProvider[provider] = count
	}
	return stats, rows.Err()
}
