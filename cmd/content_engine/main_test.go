package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/llm"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/trends"
	"github.com/jonathan/content-engine/internal/types"
)

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{}, nil
}

func findCommand(t *testing.T, path ...string) *cobra.Command {
	t.Helper()
	cmd, rest, err := rootCmd.Find(path)
	require.NoError(t, err)
	require.Empty(t, rest)
	return cmd
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"generate"},
		{"jobs", "run"},
		{"trends", "refresh"},
		{"trends", "prune"},
		{"intelligence", "build"},
		{"intelligence", "show"},
		{"intel", "show"},
	} {
		cmd := findCommand(t, path...)
		assert.Equal(t, path[len(path)-1], cmd.Name(), "path %v", path)
	}
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name    string
		path    []string
		args    []string
		wantErr bool
	}{
		{"jobs run needs id", []string{"jobs", "run"}, nil, true},
		{"jobs run one id", []string{"jobs", "run"}, []string{"abc"}, false},
		{"refresh needs niche", []string{"trends", "refresh"}, nil, true},
		{"prune takes none", []string{"trends", "prune"}, []string{"tech"}, true},
		{"build one niche", []string{"intelligence", "build"}, []string{"tech"}, false},
		{"migrate up", []string{"migrate"}, []string{"up"}, false},
		{"migrate sideways", []string{"migrate"}, []string{"sideways"}, true},
		{"migrate needs direction", []string{"migrate"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := findCommand(t, tt.path...)
			err := cmd.ValidateArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateRequiredFlags(t *testing.T) {
	cmd := findCommand(t, "generate")
	for _, name := range []string{"niche", "product"} {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag], name)
	}
}

func setGenerateFlags(t *testing.T, niche, product string, platforms ...string) {
	t.Helper()
	old := []any{genNiche, genProduct, genTemplate, genTone, genPlatforms, genProvider, genSpartan, genTrendContext}
	t.Cleanup(func() {
		genNiche = old[0].(string)
		genProduct = old[1].(string)
		genTemplate = old[2].(string)
		genTone = old[3].(string)
		genPlatforms = old[4].([]string)
		genProvider = old[5].(string)
		genSpartan = old[6].(bool)
		genTrendContext = old[7].(bool)
	})
	genNiche = niche
	genProduct = product
	genTemplate = "product_review"
	genTone = "friendly"
	genPlatforms = platforms
	genProvider = ""
	genSpartan = false
	genTrendContext = false
}

func TestGenerateRequestFromFlags(t *testing.T) {
	t.Run("normalises values", func(t *testing.T) {
		setGenerateFlags(t, " Tech ", "  Smart Ring ", "TikTok", " twitter", "")
		genProvider = "Anthropic"
		genSpartan = true

		req, err := generateRequestFromFlags()
		require.NoError(t, err)
		assert.Equal(t, types.Niche("tech"), req.Niche)
		assert.Equal(t, "Smart Ring", req.ProductName)
		assert.Equal(t, []types.Platform{types.PlatformTikTok, types.PlatformTwitter}, req.Platforms)
		assert.Equal(t, "anthropic", req.Provider)
		assert.True(t, req.Spartan)
		assert.False(t, req.UseTrendContext)
	})

	t.Run("unknown niche", func(t *testing.T) {
		setGenerateFlags(t, "gardening", "Trowel", "tiktok")
		_, err := generateRequestFromFlags()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid generation options")
	})

	t.Run("no platforms", func(t *testing.T) {
		setGenerateFlags(t, "tech", "Smart Ring")
		_, err := generateRequestFromFlags()
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		setGenerateFlags(t, "tech", "Smart Ring", "tiktok")
		genProvider = "openai"
		_, err := generateRequestFromFlags()
		assert.Error(t, err)
	})
}

func TestProviderSetups(t *testing.T) {
	cfg := config.LLMConfig{
		AnthropicAPIKey: "sk-ant",
		GeminiAPIKey:    "g-key",
		ProviderOrder:   []string{"anthropic", "gemini"},
		Models:          map[string]map[string]string{"gemini": {"standard": "gemini-2.5-flash"}},
	}

	setups := providerSetups(cfg)
	require.Len(t, setups, 2)
	assert.Equal(t, llm.ProviderAnthropic, setups[0].Provider)
	assert.Equal(t, "sk-ant", setups[0].APIKey)
	assert.Nil(t, setups[0].Models)
	assert.Equal(t, llm.ProviderGemini, setups[1].Provider)
	assert.Equal(t, "gemini-2.5-flash", setups[1].Models["standard"])

	cfg.AnthropicAPIKey = ""
	setups = providerSetups(cfg)
	require.Len(t, setups, 1)
	assert.Equal(t, llm.ProviderGemini, setups[0].Provider)

	cfg.GeminiAPIKey = ""
	assert.Empty(t, providerSetups(cfg))
}

func TestTrendProviders(t *testing.T) {
	logger := logging.NewNop()
	cfg := config.TrendsConfig{
		UseLLM: true,
		Feeds:  []config.FeedSource{{Name: "market-api", URLTemplate: "https://api.example.com/{niche}"}},
		Pages:  []config.PageSource{{Name: "bestsellers", URLTemplate: "https://shop.example.com/{niche}", ItemSelector: "li"}},
	}

	providers := trendProviders(cfg, stubGenerator{}, logger)
	var names []string
	for _, p := range providers {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"market-api", "bestsellers", trends.LLMSourceName}, names)

	cfg.UseLLM = false
	assert.Len(t, trendProviders(cfg, stubGenerator{}, logger), 2)

	cfg.UseLLM = true
	assert.Len(t, trendProviders(cfg, nil, logger), 2)
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetErr(&buf)

	emit := progressPrinter(cmd)
	emit(scheduler.ProgressEvent{Type: "started", Total: 2, Status: "running"})
	emit(scheduler.ProgressEvent{Type: "task_completed", Product: "Smart Ring", Completed: 1, Total: 2})
	emit(scheduler.ProgressEvent{Type: "task_failed", Product: "Desk Lamp", Error: "boom", Completed: 2, Total: 2})

	assert.Equal(t, "[0/2] started running\n[1/2] task_completed Smart Ring\n[2/2] task_failed Desk Lamp: boom\n", buf.String())
}
