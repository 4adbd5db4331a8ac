// Package prompts provides a loader for externalized LLM prompt templates.
// Prompts are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// Prompt files.
const (
	GenerationFile   = "generation.json"
	TrendsFile       = "trends.json"
	IntelligenceFile = "intelligence.json"
)

// cache stores parsed prompt files to avoid repeated JSON parsing
var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

var placeholderRe = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// Get retrieves a prompt by filename and key.
// The filename should not include the path (e.g., "generation.json").
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	return prompt, nil
}

// MustGet retrieves a prompt by filename and key, panicking if not found.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// GetOr returns the prompt for key, or fallback when the key is absent.
func GetOr(filename, key, fallback string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		return fallback
	}
	return prompt
}

// Format replaces template placeholders in the form {{.Key}} with values from data.
// Substitution is a single pass over template, so placeholders inside values
// are left as literal text. Placeholders without a value are kept.
func Format(template string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		if value, ok := data[placeholderRe.FindStringSubmatch(m)[1]]; ok {
			return value
		}
		return m
	})
}

// Render loads a prompt and formats it, failing if the template names a
// placeholder that data does not supply.
func Render(filename, key string, data map[string]string) (string, error) {
	template, err := Get(filename, key)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, name := range Placeholders(template) {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s/%s missing values for %s", filename, key, strings.Join(missing, ", "))
	}
	return Format(template, data), nil
}

// Placeholders returns the sorted, distinct placeholder names in template.
func Placeholders(template string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// loadFile loads and caches a prompt file.
func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if prompts, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return prompts, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()

	return prompts, nil
}

// ClearCache clears the prompt cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}

// List returns all available prompt keys in a file, sorted.
func List(filename string) ([]string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(prompts))
	for key := range prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
