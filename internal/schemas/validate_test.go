package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Content(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "valid",
			doc:  `{"hook":"Stop scrolling","body":"This serum works.","call_to_action":"Shop now","captions":{"tiktok":"Glow"},"hashtags":["#glow"]}`,
		},
		{
			name: "captions and hashtags optional",
			doc:  `{"hook":"h","body":"b","call_to_action":"c"}`,
		},
		{name: "missing hook", doc: `{"body":"b","call_to_action":"c"}`, wantErr: true},
		{name: "empty body", doc: `{"hook":"h","body":"","call_to_action":"c"}`, wantErr: true},
		{name: "caption not string", doc: `{"hook":"h","body":"b","call_to_action":"c","captions":{"tiktok":5}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(Content, tt.doc)
			if tt.wantErr {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, Content, ve.Schema)
				assert.NotEmpty(t, ve.Errors)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Trends(t *testing.T) {
	assert.NoError(t, Validate(Trends, `{"products":[{"title":"LED mask","mentions":12,"score":80}]}`))
	assert.NoError(t, Validate(Trends, `{"products":[]}`))
	assert.Error(t, Validate(Trends, `{"products":[{"title":""}]}`))
	assert.Error(t, Validate(Trends, `{"products":[{"title":"x","score":150}]}`))
	assert.Error(t, Validate(Trends, `{}`))
}

func TestValidate_Insight(t *testing.T) {
	assert.NoError(t, Validate(Insight, `{"summary":"Serums are hot","angles":["before/after"]}`))
	assert.Error(t, Validate(Insight, `{"summary":"x","angles":[]}`))
	assert.Error(t, Validate(Insight, `{"angles":["a"]}`))
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(Content, `{"hook": `)
	var docErr *DocumentError
	assert.ErrorAs(t, err, &docErr)
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", `{}`)
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "nope.schema.json")
}

func TestNames(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{Content, Insight, Trends}, names)
}

func TestValidateJSONString_Valid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	assert.NoError(t, ValidateJSONString(schemaContent, `{"name": "test"}`))
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["person"],
		"properties": {
			"person": {
				"type": "object",
				"required": ["name"],
				"properties": {"name": {"type": "string"}}
			}
		}
	}`

	err := ValidateJSONString(schemaContent, `{"person": {}}`)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.NotEmpty(t, validationErr.Errors)
	assert.Equal(t, "person", validationErr.Errors[0].Field)
}

func TestValidateJSONString_BadSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": 12}`, `{}`)
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Schema: "content",
		Errors: []FieldError{
			{Field: "hook", Message: "is required"},
			{Field: "body", Message: "must be a string"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "content validation failed")
	assert.Contains(t, errorMsg, "hook")
	assert.Contains(t, errorMsg, "body")
}
