package types

import (
	"github.com/go-playground/validator/v10"
)

// JobRequest creates or replaces a scheduled bulk generation job.
type JobRequest struct {
	Name              string         `json:"name" validate:"required,min=1,max=120"`
	CronExpression    string         `json:"cron_expression" validate:"required"`
	Timezone          string         `json:"timezone" validate:"omitempty,timezone"`
	Niches            []Niche        `json:"niches" validate:"required,min=1,unique,dive,oneof=beauty tech fashion fitness food travel pets"`
	ProductsPerNiche  int            `json:"products_per_niche" validate:"required,min=1,max=20"`
	TemplateTypes     []TemplateType `json:"template_types" validate:"required,min=1,unique,dive,oneof=product_review short_video listicle comparison unboxing how_to"`
	Tones             []Tone         `json:"tones" validate:"required,min=1,unique,dive,oneof=friendly enthusiastic professional humorous luxurious educational"`
	Platforms         []Platform     `json:"platforms" validate:"required,min=1,unique,dive,oneof=tiktok instagram youtube twitter facebook"`
	PreferredProvider string         `json:"preferred_provider,omitempty" validate:"omitempty,oneof=gemini anthropic"`
	Spartan           bool           `json:"spartan"`
	WebhookURL        string         `json:"webhook_url,omitempty" validate:"omitempty,url,startswith=http"`
	WebhookSecret     string         `json:"webhook_secret,omitempty" validate:"omitempty,min=8"`
	Active            *bool          `json:"active,omitempty"`
}

// Validate validates the JobRequest using the validator.
func (r *JobRequest) Validate() error {
	return validator.New().Struct(r)
}

// IsActive returns the requested active flag, defaulting to true.
func (r *JobRequest) IsActive() bool {
	return r.Active == nil || *r.Active
}

// EffectiveTimezone returns the requested timezone or UTC.
func (r *JobRequest) EffectiveTimezone() string {
	if r.Timezone == "" {
		return "UTC"
	}
	return r.Timezone
}
