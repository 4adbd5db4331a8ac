package trends

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/generation"
	"github.com/jonathan/content-engine/internal/types"
)

// extraSourceBonus is added to a product's score for each source beyond the first.
const extraSourceBonus = 0.5

// NormalizeTitle lowercases title, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

type bucket struct {
	product  db.TrendingProductInput
	maxScore float64
	sources  map[string]bool
}

// Aggregate merges signals by normalised title. Mentions are summed and the
// score is the best source score plus ln(1+mentions) plus a bonus per extra
// source. The result is sorted by score descending, then title, and cut to
// limit (no cut when limit <= 0). Titles are shortened on a word boundary to
// the longest accepted product name.
func Aggregate(signals []Signal, limit int) []db.TrendingProductInput {
	buckets := make(map[string]*bucket)
	var order []string

	for _, s := range signals {
		key := NormalizeTitle(s.Title)
		if key == "" {
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				product: db.TrendingProductInput{
					Title:           generation.TruncateWords(strings.TrimSpace(s.Title), types.MaxProductNameLen),
					NormalizedTitle: key,
				},
				sources: make(map[string]bool),
			}
			buckets[key] = b
			order = append(order, key)
		}
		if s.Mentions > 0 {
			b.product.Mentions += s.Mentions
		}
		if s.Score > b.maxScore {
			b.maxScore = s.Score
		}
		if b.product.Price == "" {
			b.product.Price = s.Price
		}
		if b.product.URL == "" {
			b.product.URL = s.URL
		}
		if s.Source != "" {
			b.sources[s.Source] = true
		}
	}

	out := make([]db.TrendingProductInput, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		sources := make([]string, 0, len(b.sources))
		for src := range b.sources {
			sources = append(sources, src)
		}
		sort.Strings(sources)

		p := b.product
		p.Sources = sources
		extra := 0
		if len(sources) > 1 {
			extra = len(sources) - 1
		}
		p.Score = roundScore(b.maxScore + math.Log1p(float64(p.Mentions)) + extraSourceBonus*float64(extra))
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NormalizedTitle < out[j].NormalizedTitle
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func roundScore(v float64) float64 {
	return math.Round(v*1000) / 1000
}
