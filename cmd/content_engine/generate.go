package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-engine/internal/observability"
	"github.com/jonathan/content-engine/internal/types"
)

var (
	genNiche        string
	genProduct      string
	genTemplate     string
	genTone         string
	genPlatforms    []string
	genProvider     string
	genSpartan      bool
	genTrendContext bool
	genJSON         bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate content for one product without storing it",
	Long: `Generate marketing copy for a single product and print it. The result is not
stored; use the API to keep generations.`,
	Example: `  content_engine generate --niche tech --product "Smart Ring" --platforms tiktok,twitter --spartan`,
	RunE:    runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genNiche, "niche", "", "Niche (required)")
	generateCmd.Flags().StringVar(&genProduct, "product", "", "Product name (required)")
	generateCmd.Flags().StringVar(&genTemplate, "template", string(types.TemplateProductReview), "Template type")
	generateCmd.Flags().StringVar(&genTone, "tone", string(types.ToneFriendly), "Tone")
	generateCmd.Flags().StringSliceVar(&genPlatforms, "platforms", []string{string(types.PlatformTikTok)}, "Comma-separated target platforms")
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "Preferred AI provider (gemini or anthropic)")
	generateCmd.Flags().BoolVar(&genSpartan, "spartan", false, "Apply Spartan Format")
	generateCmd.Flags().BoolVar(&genTrendContext, "trend-context", false, "Include the niche's latest intelligence snapshot")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Print JSON instead of formatted boxes")

	_ = generateCmd.MarkFlagRequired("niche")
	_ = generateCmd.MarkFlagRequired("product")

	rootCmd.AddCommand(generateCmd)
}

// draftOutput is the --json shape of a draft.
type draftOutput struct {
	Content      types.GeneratedContent `json:"content"`
	Provider     string                 `json:"provider"`
	Model        string                 `json:"model"`
	FallbackUsed bool                   `json:"fallback_used"`
	LatencyMS    int64                  `json:"latency_ms"`
}

// generateRequestFromFlags builds and validates the request from the flag values.
func generateRequestFromFlags() (*types.GenerateRequest, error) {
	req := &types.GenerateRequest{
		Niche:           types.Niche(strings.ToLower(strings.TrimSpace(genNiche))),
		ProductName:     strings.TrimSpace(genProduct),
		TemplateType:    types.TemplateType(strings.ToLower(genTemplate)),
		Tone:            types.Tone(strings.ToLower(genTone)),
		Provider:        strings.ToLower(genProvider),
		Spartan:         genSpartan,
		UseTrendContext: genTrendContext,
	}
	for _, p := range genPlatforms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			req.Platforms = append(req.Platforms, types.Platform(p))
		}
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation options: %w", err)
	}
	return req, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	req, err := generateRequestFromFlags()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	draft, err := a.generation.Draft(cmd.Context(), req)
	if err != nil {
		return err
	}

	if genJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(draftOutput{
			Content:      draft.Content,
			Provider:     draft.Provider,
			Model:        draft.Model,
			FallbackUsed: draft.FallbackUsed,
			LatencyMS:    draft.Latency.Milliseconds(),
		})
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintDraft(req, draft)
	return nil
}
