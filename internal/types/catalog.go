// Package types provides the domain vocabulary and request/response shapes shared across the content engine.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// Niche is a content vertical used to scope generation parameters.
type Niche string

// Supported niches.
const (
	NicheBeauty  Niche = "beauty"
	NicheTech    Niche = "tech"
	NicheFashion Niche = "fashion"
	NicheFitness Niche = "fitness"
	NicheFood    Niche = "food"
	NicheTravel  Niche = "travel"
	NichePets    Niche = "pets"
)

var allNiches = []Niche{NicheBeauty, NicheTech, NicheFashion, NicheFitness, NicheFood, NicheTravel, NichePets}

// AllNiches returns every supported niche in display order.
func AllNiches() []Niche {
	out := make([]Niche, len(allNiches))
	copy(out, allNiches)
	return out
}

// Valid reports whether n is a supported niche.
func (n Niche) Valid() bool {
	for _, candidate := range allNiches {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNiche normalizes and validates a niche name.
func ParseNiche(s string) (Niche, error) {
	n := Niche(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("unknown niche %q", s)
	}
	return n, nil
}

// Platform is a social network the copy is written for.
type Platform string

// Supported platforms.
const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
)

// PlatformSpec holds per-platform output limits.
type PlatformSpec struct {
	Platform     Platform `json:"platform"`
	CaptionLimit int      `json:"caption_limit"`
	HashtagLimit int      `json:"hashtag_limit"`
}

var platformSpecs = []PlatformSpec{
	{Platform: PlatformTikTok, CaptionLimit: 2200, HashtagLimit: 5},
	{Platform: PlatformInstagram, CaptionLimit: 2200, HashtagLimit: 30},
	{Platform: PlatformYouTube, CaptionLimit: 5000, HashtagLimit: 15},
	{Platform: PlatformTwitter, CaptionLimit: 280, HashtagLimit: 3},
	{Platform: PlatformFacebook, CaptionLimit: 63206, HashtagLimit: 10},
}

// AllPlatforms returns the limits for every supported platform.
func AllPlatforms() []PlatformSpec {
	out := make([]PlatformSpec, len(platformSpecs))
	copy(out, platformSpecs)
	return out
}

// Spec returns the limits for p. ok is false for unknown platforms.
func (p Platform) Spec() (spec PlatformSpec, ok bool) {
	for _, s := range platformSpecs {
		if s.Platform == p {
			return s, true
		}
	}
	return PlatformSpec{}, false
}

// TemplateType selects the structure of the generated copy.
type TemplateType string

// Supported template types.
const (
	TemplateProductReview TemplateType = "product_review"
	TemplateShortVideo    TemplateType = "short_video"
	TemplateListicle      TemplateType = "listicle"
	TemplateComparison    TemplateType = "comparison"
	TemplateUnboxing      TemplateType = "unboxing"
	TemplateHowTo         TemplateType = "how_to"
)

var allTemplates = []TemplateType{
	TemplateProductReview, TemplateShortVideo, TemplateListicle,
	TemplateComparison, TemplateUnboxing, TemplateHowTo,
}

// AllTemplateTypes returns every supported template type.
func AllTemplateTypes() []TemplateType {
	out := make([]TemplateType, len(allTemplates))
	copy(out, allTemplates)
	return out
}

// Tone is the voice the copy is written in.
type Tone string

// Supported tones.
const (
	ToneFriendly     Tone = "friendly"
	ToneEnthusiastic Tone = "enthusiastic"
	ToneProfessional Tone = "professional"
	ToneHumorous     Tone = "humorous"
	ToneLuxurious    Tone = "luxurious"
	ToneEducational  Tone = "educational"
)

var allTones = []Tone{ToneFriendly, ToneEnthusiastic, ToneProfessional, ToneHumorous, ToneLuxurious, ToneEducational}

// AllTones returns every supported tone.
func AllTones() []Tone {
	out := make([]Tone, len(allTones))
	copy(out, allTones)
	return out
}

// Catalog is the public description of the supported generation options.
type Catalog struct {
	Niches        []Niche        `json:"niches"`
	Platforms     []PlatformSpec `json:"platforms"`
	TemplateTypes []TemplateType `json:"template_types"`
	Tones         []Tone         `json:"tones"`
	Providers     []string       `json:"providers"`
}

// NewCatalog assembles the catalog for the given configured providers.
func NewCatalog(providers []string) Catalog {
	return Catalog{
		Niches:        AllNiches(),
		Platforms:     AllPlatforms(),
		TemplateTypes: AllTemplateTypes(),
		Tones:         AllTones(),
		Providers:     providers,
	}
}
