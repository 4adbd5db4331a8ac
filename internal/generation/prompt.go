package generation

import (
	"fmt"
	"strings"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/prompts"
	"github.com/jonathan/content-engine/internal/types"
)

// BuildPrompt renders the generation prompt for req. snapshot may be nil.
func BuildPrompt(req *types.GenerateRequest, snapshot *db.IntelligenceSnapshot) (string, error) {
	templateGuidance, err := prompts.Get(prompts.GenerationFile, "template-"+string(req.TemplateType))
	if err != nil {
		return "", fmt.Errorf("template guidance: %w", err)
	}
	toneGuidance, err := prompts.Get(prompts.GenerationFile, "tone-"+string(req.Tone))
	if err != nil {
		return "", fmt.Errorf("tone guidance: %w", err)
	}

	trendContext := ""
	if snapshot != nil {
		trendContext, err = prompts.Render(prompts.GenerationFile, "trend-context", map[string]string{
			"Summary":  snapshot.Summary,
			"Keywords": strings.Join(snapshot.Keywords, ", "),
			"Angles":   strings.Join(snapshot.Angles, "; "),
		})
		if err != nil {
			return "", err
		}
	}

	return prompts.Render(prompts.GenerationFile, "generate-content", map[string]string{
		"Niche":            string(req.Niche),
		"TemplateType":     strings.ReplaceAll(string(req.TemplateType), "_", " "),
		"ProductName":      req.ProductName,
		"Tone":             string(req.Tone),
		"TemplateGuidance": templateGuidance,
		"ToneGuidance":     toneGuidance,
		"PlatformRules":    platformRules(req.Platforms),
		"TrendContext":     trendContext,
	})
}

func platformRules(platforms []types.Platform) string {
	var sb strings.Builder
	for i, p := range platforms {
		spec, ok := p.Spec()
		if !ok {
			continue
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: caption up to %d characters including hashtags, at most %d hashtags",
			p, spec.CaptionLimit, spec.HashtagLimit)
	}
	return sb.String()
}
