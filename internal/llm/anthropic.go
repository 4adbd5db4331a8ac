package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const jsonInstruction = "\n\nRespond with a single JSON value only. Do not wrap it in markdown."

// AnthropicClient implements Client for Anthropic Claude models.
type AnthropicClient struct {
	client anthropic.Client
	config *Config
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(config *Config, apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return &AnthropicClient{
		client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		config: config,
	}, nil
}

// GenerateContent generates text content using the specified model tier
func (c *AnthropicClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier)
}

// GenerateJSON generates JSON content using the specified model tier.
// Claude has no JSON response mode, so the prompt carries the instruction.
func (c *AnthropicClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt+jsonInstruction, tier)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *AnthropicClient) generate(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelName),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(c.config.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		callErr := &APICallError{Provider: ProviderAnthropic, Model: modelName, Cause: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			callErr.StatusCode = apiErr.StatusCode
		}
		return "", callErr
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &EmptyResponseError{Provider: ProviderAnthropic, Reason: fmt.Sprintf("stop reason %s", msg.StopReason)}
	}
	return sb.String(), nil
}

// GetModel returns the model name for a tier
func (c *AnthropicClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Provider returns ProviderAnthropic.
func (c *AnthropicClient) Provider() Provider {
	return ProviderAnthropic
}

// Close is a no-op; the SDK holds no long-lived resources.
func (c *AnthropicClient) Close() error {
	return nil
}
