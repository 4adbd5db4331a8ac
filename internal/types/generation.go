package types

import (
	"github.com/go-playground/validator/v10"
)

// MaxProductNameLen matches the max on GenerateRequest.ProductName.
const MaxProductNameLen = 200

// GenerateRequest asks for one piece of content about one product.
type GenerateRequest struct {
	Niche           Niche        `json:"niche" validate:"required,oneof=beauty tech fashion fitness food travel pets"`
	ProductName     string       `json:"product_name" validate:"required,min=1,max=200"`
	TemplateType    TemplateType `json:"template_type" validate:"required,oneof=product_review short_video listicle comparison unboxing how_to"`
	Tone            Tone         `json:"tone" validate:"required,oneof=friendly enthusiastic professional humorous luxurious educational"`
	Platforms       []Platform   `json:"platforms" validate:"required,min=1,unique,dive,oneof=tiktok instagram youtube twitter facebook"`
	Provider        string       `json:"provider,omitempty" validate:"omitempty,oneof=gemini anthropic"`
	Spartan         bool         `json:"spartan"`
	UseTrendContext bool         `json:"use_trend_context"`
}

// Validate validates the GenerateRequest using the validator.
func (r *GenerateRequest) Validate() error {
	return validator.New().Struct(r)
}

// GeneratedContent is the structured copy returned by the model.
type GeneratedContent struct {
	Hook         string              `json:"hook"`
	Body         string              `json:"body"`
	CallToAction string              `json:"call_to_action"`
	Captions     map[Platform]string `json:"captions"`
	Hashtags     []string            `json:"hashtags"`
}

// RatingRequest rates a generation from 1 to 5.
type RatingRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// Validate validates the RatingRequest using the validator.
func (r *RatingRequest) Validate() error {
	return validator.New().Struct(r)
}
