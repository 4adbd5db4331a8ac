// Package schemas validates model output against embedded JSON Schemas.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// Embedded schema names.
const (
	Content  = "content"
	Trends   = "trends"
	Insight  = "insight"
	fileTail = ".schema.json"
)

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.RWMutex
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Schema != "" {
		fmt.Fprintf(&sb, "%s validation failed:\n", ve.Schema)
	} else {
		sb.WriteString("validation failed:\n")
	}
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// DocumentError means the document is not parseable JSON.
type DocumentError struct {
	Cause error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document is not valid JSON: %v", e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// Validate checks jsonContent against the embedded schema called name.
func Validate(name, jsonContent string) error {
	schema, err := load(name)
	if err != nil {
		return err
	}
	return check(name, schema, jsonContent)
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaContent))
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema could not be compiled",
			Cause:   err,
		}
	}
	return check("", schema, jsonContent)
}

// Names lists the embedded schema names.
func Names() ([]string, error) {
	entries, err := schemaFiles.ReadDir(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), fileTail))
	}
	return names, nil
}

func check(name string, schema *gojsonschema.Schema, jsonContent string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return &DocumentError{Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: name,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

// load compiles and caches an embedded schema.
func load(name string) (*gojsonschema.Schema, error) {
	compiledMu.RLock()
	schema, ok := compiled[name]
	compiledMu.RUnlock()
	if ok {
		return schema, nil
	}

	path := name + fileTail
	data, err := schemaFiles.ReadFile(path)
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema not embedded", Cause: err}
	}
	schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema could not be compiled", Cause: err}
	}

	compiledMu.Lock()
	compiled[name] = schema
	compiledMu.Unlock()
	return schema, nil
}
