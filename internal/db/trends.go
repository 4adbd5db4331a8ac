package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const trendingProductColumns = `id, niche, title, normalized_title, sources, mentions, score, price, url,
	first_seen_at, updated_at`

// TrendingProductInput is one aggregated trend to upsert.
type TrendingProductInput struct {
	Title           string
	NormalizedTitle string
	Sources         []string
	Mentions        int
	Score           float64
	Price           string
	URL             string
}

// staleTrendDecay scales the score of a niche's products that were missing
// from the latest refresh. updated_at is left alone so pruning still ages
// them out.
const staleTrendDecay = 0.5

// UpsertTrendingProducts inserts or refreshes trends for a niche in one
// transaction and decays the niche's products the refresh did not return.
func (db *DB) UpsertTrendingProducts(ctx context.Context, niche string, products []TrendingProductInput) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		seen := make([]string, 0, len(products))
		if len(products) > 0 {
			batch := &pgx.Batch{}
			for _, p := range products {
				batch.Queue(
					`INSERT INTO trending_products (niche, title, normalized_title, sources, mentions, score, price, url)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
					 ON CONFLICT (niche, normalized_title) DO UPDATE SET
					   title = EXCLUDED.title, sources = EXCLUDED.sources, mentions = EXCLUDED.mentions,
					   score = EXCLUDED.score, price = EXCLUDED.price, url = EXCLUDED.url, updated_at = NOW()`,
					niche, p.Title, p.NormalizedTitle, StringArray(p.Sources), p.Mentions, p.Score, p.Price, p.URL,
				)
				seen = append(seen, p.NormalizedTitle)
			}

			results := tx.SendBatch(ctx, batch)
			for range products {
				if _, err := results.Exec(); err != nil {
					results.Close()
					return fmt.Errorf("failed to upsert trending product: %w", err)
				}
			}
			if err := results.Close(); err != nil {
				return fmt.Errorf("failed to upsert trending products: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE trending_products SET score = score * $3
			 WHERE niche = $1 AND NOT (normalized_title = ANY($2))`,
			niche, seen, staleTrendDecay); err != nil {
			return fmt.Errorf("failed to decay stale trending products: %w", err)
		}
		return nil
	})
}

// ListTrendingProducts returns the strongest trends for a niche
func (db *DB) ListTrendingProducts(ctx context.Context, niche string, limit int) ([]TrendingProduct, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+trendingProductColumns+` FROM trending_products
		 WHERE niche = $1
		 ORDER BY score DESC, title
		 LIMIT $2`,
		niche, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, fmt.Errorf("failed to list trending products: %w", err)
	}
	defer rows.Close()

	var out []TrendingProduct
	for rows.Next() {
		var p TrendingProduct
		if err := rows.Scan(&p.ID, &p.Niche, &p.Title, &p.NormalizedTitle, &p.Sources, &p.Mentions, &p.Score,
			&p.Price, &p.URL, &p.FirstSeenAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trending product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteTrendingProductsBefore removes trends not refreshed since cutoff
func (db *DB) DeleteTrendingProductsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM trending_products WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune trending products: %w", err)
	}
	return tag.RowsAffected(), nil
}
