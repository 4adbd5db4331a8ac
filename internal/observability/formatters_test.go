package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/generation"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/trends"
	"github.com/jonathan/content-engine/internal/types"
)

func TestPrintDraft(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	req := &types.GenerateRequest{
		Niche:        "tech",
		ProductName:  "Smart Ring",
		TemplateType: "product_review",
		Tone:         "friendly",
		Platforms:    []types.Platform{"twitter", "tiktok"},
	}
	draft := &generation.Draft{
		Content: types.GeneratedContent{
			Hook:         "Your finger is now a fitness tracker.",
			Body:         "Sleep, heart rate and steps without a wrist strap.",
			CallToAction: "Tap the link to grab one.",
			Captions: map[types.Platform]string{
				"twitter": "Sleep tracking on your finger #smartring",
				"tiktok":  "No more wrist straps #smartring #tech",
			},
			Hashtags: []string{"#smartring", "#tech"},
		},
		Provider:     "anthropic",
		Model:        "claude-sonnet",
		FallbackUsed: true,
		Latency:      1234 * time.Millisecond,
	}

	p.PrintDraft(req, draft)
	output := buf.String()

	assert.Contains(t, output, "GENERATION")
	assert.Contains(t, output, "Smart Ring")
	assert.Contains(t, output, "anthropic / claude-sonnet (fallback)")
	assert.Contains(t, output, "1.234s")
	assert.Contains(t, output, "CONTENT")
	assert.Contains(t, output, "#smartring #tech")
	assert.Contains(t, output, "TWITTER (40/280 chars)")
	assert.Less(t, strings.Index(output, "TWITTER"), strings.Index(output, "TIKTOK"))
}

func TestPrintDraft_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintDraft(nil, nil)
	p.PrintGeneration(nil)
	p.PrintRunReport(nil)
	p.PrintTrends(nil, nil)
	p.PrintSnapshot(nil)

	assert.Empty(t, buf.String())
}

func TestPrintGeneration_CaptionOrderFallsBackToSorted(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintGeneration(&db.ContentGeneration{
		ID:          uuid.New(),
		ProductName: "Lip Oil",
		Niche:       "beauty",
		Content: types.GeneratedContent{
			Captions: map[types.Platform]string{"youtube": "yt", "instagram": "ig"},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "Lip Oil")
	assert.Less(t, strings.Index(output, "INSTAGRAM"), strings.Index(output, "YOUTUBE"))
}

func TestPrintRunReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	msg := "2 tasks failed"
	report := &scheduler.RunReport{
		Run: &db.JobRun{
			ID:            uuid.New(),
			Status:        db.RunStatusPartial,
			TotalTasks:    4,
			Succeeded:     2,
			Failed:        2,
			SkippedNiches: db.StringArray{"pets"},
			ErrorMessage:  &msg,
		},
		Job: &db.ScheduledJob{Name: "Morning batch"},
		Generations: []db.ContentGeneration{
			{Niche: "tech", ProductName: "Smart Ring", TemplateType: "listicle", Tone: "humorous"},
		},
		Failures: []scheduler.TaskError{
			{Task: scheduler.Task{Niche: "tech", Product: "Mini Projector"}, Error: "all providers failed"},
		},
		Delivery: &db.WebhookDelivery{StatusCode: 500, Attempts: 3},
	}

	p.PrintRunReport(report)
	output := buf.String()

	assert.Contains(t, output, "JOB RUN: Morning batch")
	assert.Contains(t, output, "partial")
	assert.Contains(t, output, "4 (2 succeeded, 2 failed)")
	assert.Contains(t, output, "Skipped:   pets")
	assert.Contains(t, output, "failed (HTTP 500, 3 attempts)")
	assert.Contains(t, output, "Mini Projector: all providers failed")
}

func TestPrintTrends(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	products := make([]db.TrendingProduct, 12)
	for i := range products {
		products[i] = db.TrendingProduct{Title: "Product " + string(rune('A'+i)), Score: float64(12 - i), Mentions: i}
	}

	p.PrintTrends(&trends.RefreshResult{
		Niche:    "tech",
		Products: 12,
		Signals:  30,
		Sources:  []string{"llm", "feed"},
		Failed:   map[string]string{"shop": "timeout"},
	}, products)
	output := buf.String()

	assert.Contains(t, output, "TRENDS: TECH")
	assert.Contains(t, output, "30 from llm, feed")
	assert.Contains(t, output, "shop: timeout")
	assert.Contains(t, output, "Product A")
	assert.Contains(t, output, "... and 2 more")
	assert.NotContains(t, output, "Product L")
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSnapshot(&db.IntelligenceSnapshot{
		Niche:    "beauty",
		Summary:  "Lip oils keep climbing.",
		Keywords: db.StringArray{"lip", "oil"},
		Angles:   db.StringArray{"Before and after"},
		Products: db.StringArray{"a", "b", "c", "d", "e", "f"},
	})
	output := buf.String()

	assert.Contains(t, output, "INTELLIGENCE: BEAUTY")
	assert.Contains(t, output, "lip, oil")
	assert.Contains(t, output, "• Before and after")
	assert.Contains(t, output, "a, b, c, d, e (+1)")
}

func TestPrintBox_WrapsLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	long := strings.Repeat("word ", 40) + strings.Repeat("x", 100)
	p.printBox("TEST", long)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	for _, line := range lines {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), line)
	}
	assert.Contains(t, buf.String(), "word word")
	assert.NotContains(t, buf.String(), "...")
}

func TestWrap(t *testing.T) {
	assert.Equal(t, []string{"short"}, wrap("short", 10))
	assert.Equal(t, []string{"one two", "three"}, wrap("one two three", 8))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, wrap("abcdefghij", 4))
	assert.Equal(t, []string{""}, wrap("", 4))
}
