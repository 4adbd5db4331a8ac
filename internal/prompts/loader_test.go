package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(GenerationFile, "generate-content")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Return ONLY valid JSON")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(GenerationFile, "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestGetOr(t *testing.T) {
	assert.Equal(t, "fallback", GetOr(GenerationFile, "template-unknown", "fallback"))
	assert.NotEqual(t, "fallback", GetOr(GenerationFile, "tone-friendly", "fallback"))
}

func TestFormat(t *testing.T) {
	template := "Write about {{.ProductName}} for {{.Niche}}!"
	data := map[string]string{
		"ProductName": "LED mask",
		"Niche":       "beauty",
	}

	assert.Equal(t, "Write about LED mask for beauty!", Format(template, data))
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	assert.Equal(t, template, Format(template, map[string]string{}))
}

func TestFormat_ValuesAreNotExpanded(t *testing.T) {
	template := "{{.A}} then {{.B}}"
	data := map[string]string{"A": "literal {{.B}}", "B": "literal {{.A}}"}

	for i := 0; i < 20; i++ {
		assert.Equal(t, "literal {{.B}} then literal {{.A}}", Format(template, data))
	}
}

func TestRender_ValueContainingPlaceholder(t *testing.T) {
	out, err := Render(TrendsFile, "trending-products", map[string]string{"Niche": "{{.Brand}} pets", "Limit": "10"})
	require.NoError(t, err)
	assert.Contains(t, out, "{{.Brand}} pets niche")
}

func TestRender_MissingValues(t *testing.T) {
	_, err := Render(IntelligenceFile, "niche-insight", map[string]string{"Niche": "tech"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Keywords")
	assert.Contains(t, err.Error(), "Products")
}

func TestRender_Complete(t *testing.T) {
	out, err := Render(TrendsFile, "trending-products", map[string]string{"Niche": "pets", "Limit": "10"})
	require.NoError(t, err)
	assert.Contains(t, out, "pets niche")
	assert.Empty(t, Placeholders(out))
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{{.B}} and {{.A}} and {{.B}} but not {{ .C }}")
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestEveryTemplateAndToneHasGuidance(t *testing.T) {
	keys, err := List(GenerationFile)
	require.NoError(t, err)
	for _, tmpl := range []string{"product_review", "short_video", "listicle", "comparison", "unboxing", "how_to"} {
		assert.Contains(t, keys, "template-"+tmpl)
	}
	for _, tone := range []string{"friendly", "enthusiastic", "professional", "humorous", "luxurious", "educational"} {
		assert.Contains(t, keys, "tone-"+tone)
	}
}

func TestCaching(t *testing.T) {
	ClearCache()

	prompt1, err := Get(TrendsFile, "trending-products")
	require.NoError(t, err)
	prompt2, err := Get(TrendsFile, "trending-products")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
