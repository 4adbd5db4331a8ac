package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/content-engine/internal/types"
)

// Job run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Job run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// StringArray handles JSONB string arrays
type StringArray []string

// Scan implements the Scanner interface for StringArray
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = []string{}
		return nil
	}
	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return errors.New("StringArray: unsupported scan source")
	}
	return json.Unmarshal(source, a)
}

// Value implements the Valuer interface for StringArray
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// ContentGeneration is one persisted piece of generated content.
type ContentGeneration struct {
	ID           uuid.UUID              `json:"id"`
	UserID       uuid.UUID              `json:"user_id"`
	JobRunID     *uuid.UUID             `json:"job_run_id,omitempty"`
	Niche        string                 `json:"niche"`
	ProductName  string                 `json:"product_name"`
	TemplateType string                 `json:"template_type"`
	Tone         string                 `json:"tone"`
	Platforms    StringArray            `json:"platforms"`
	Content      types.GeneratedContent `json:"content"`
	Spartan      bool                   `json:"spartan"`
	Provider     string                 `json:"provider"`
	Model        string                 `json:"model"`
	FallbackUsed bool                   `json:"fallback_used"`
	LatencyMs    int64                  `json:"latency_ms"`
	Rating       *int                   `json:"rating,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// GenerationInput holds the values stored for a new generation.
type GenerationInput struct {
	UserID       uuid.UUID
	JobRunID     *uuid.UUID
	Niche        string
	ProductName  string
	TemplateType string
	Tone         string
	Platforms    []string
	Content      types.GeneratedContent
	Spartan      bool
	Provider     string
	Model        string
	FallbackUsed bool
	LatencyMs    int64
}

// GenerationFilters narrows ListGenerations.
type GenerationFilters struct {
	Niche    string
	JobRunID *uuid.UUID
	Limit    int
	Offset   int
}

// NicheStats aggregates generations for one niche.
type NicheStats struct {
	Niche         string   `json:"niche"`
	Count         int      `json:"count"`
	Rated         int      `json:"rated"`
	AverageRating *float64 `json:"average_rating,omitempty"`
}

// GenerationStats summarises a tenant's generations.
type GenerationStats struct {
	Total         int            `json:"total"`
	Rated         int            `json:"rated"`
	AverageRating *float64       `json:"average_rating,omitempty"`
	FallbackCount int            `json:"fallback_count"`
	ByNiche       []NicheStats   `json:"by_niche"`
	ByProvider    map[string]int `json:"by_provider"`
}

// ScheduledJob is a persisted bulk generation job.
type ScheduledJob struct {
	ID                  uuid.UUID   `json:"id"`
	UserID              uuid.UUID   `json:"user_id"`
	Name                string      `json:"name"`
	CronExpression      string      `json:"cron_expression"`
	Timezone            string      `json:"timezone"`
	Niches              StringArray `json:"niches"`
	ProductsPerNiche    int         `json:"products_per_niche"`
	TemplateTypes       StringArray `json:"template_types"`
	Tones               StringArray `json:"tones"`
	Platforms           StringArray `json:"platforms"`
	PreferredProvider   string      `json:"preferred_provider,omitempty"`
	Spartan             bool        `json:"spartan"`
	WebhookURL          string      `json:"webhook_url,omitempty"`
	WebhookSecret       string      `json:"-"`
	Active              bool        `json:"active"`
	LastRunAt           *time.Time  `json:"last_run_at,omitempty"`
	NextRunAt           *time.Time  `json:"next_run_at,omitempty"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// JobInput holds the user-editable fields of a scheduled job.
type JobInput struct {
	Name              string
	CronExpression    string
	Timezone          string
	Niches            []string
	ProductsPerNiche  int
	TemplateTypes     []string
	Tones             []string
	Platforms         []string
	PreferredProvider string
	Spartan           bool
	WebhookURL        string
	WebhookSecret     string
	Active            bool
	NextRunAt         *time.Time
}

// JobRun is one execution of a scheduled job.
type JobRun struct {
	ID            uuid.UUID   `json:"id"`
	JobID         uuid.UUID   `json:"job_id"`
	UserID        uuid.UUID   `json:"user_id"`
	Trigger       string      `json:"trigger"`
	Status        string      `json:"status"`
	TotalTasks    int         `json:"total_tasks"`
	Succeeded     int         `json:"succeeded"`
	Failed        int         `json:"failed"`
	SkippedNiches StringArray `json:"skipped_niches"`
	ErrorMessage  *string     `json:"error_message,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// JobRunResult holds the final counters written by FinishJobRun.
type JobRunResult struct {
	Status        string
	TotalTasks    int
	Succeeded     int
	Failed        int
	SkippedNiches []string
	ErrorMessage  string
}

// JobOutcome updates a job after a run.
type JobOutcome struct {
	RanAt     time.Time
	NextRunAt *time.Time
	Failed    bool
	// MaxConsecutiveFailures deactivates the job once reached; zero disables it.
	MaxConsecutiveFailures int
}

// WebhookDelivery records one webhook delivery attempt sequence.
type WebhookDelivery struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	JobID      uuid.UUID `json:"job_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	URL        string    `json:"url"`
	Event      string    `json:"event"`
	StatusCode int       `json:"status_code"`
	Attempts   int       `json:"attempts"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// TrendingProduct is an aggregated product trend for a niche.
type TrendingProduct struct {
	ID              uuid.UUID   `json:"id"`
	Niche           string      `json:"niche"`
	Title           string      `json:"title"`
	NormalizedTitle string      `json:"-"`
	Sources         StringArray `json:"sources"`
	Mentions        int         `json:"mentions"`
	Score           float64     `json:"score"`
	Price           string      `json:"price,omitempty"`
	URL             string      `json:"url,omitempty"`
	FirstSeenAt     time.Time   `json:"first_seen_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// IntelligenceSnapshot is a point-in-time reading of a niche.
type IntelligenceSnapshot struct {
	ID        uuid.UUID   `json:"id"`
	Niche     string      `json:"niche"`
	Summary   string      `json:"summary"`
	Keywords  StringArray `json:"keywords"`
	Angles    StringArray `json:"angles"`
	Products  StringArray `json:"products"`
	Provider  string      `json:"provider,omitempty"`
	Model     string      `json:"model,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
