package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CourseContentSchema describes one chunk's generated course content.
// The same map is sent to the model and used locally to validate.
func CourseContentSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"slides", "quiz"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"slides": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"title", "htmlBody"},
					"properties": map[string]any{
						"title":           map[string]any{"type": "string", "minLength": 1},
						"htmlBody":        map[string]any{"type": "string"},
						"imageSearchTerm": map[string]any{"type": "string"},
					},
				},
			},
			"quiz": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"question", "options", "correctIndex"},
					"properties": map[string]any{
						"question":     map[string]any{"type": "string", "minLength": 1},
						"options":      map[string]any{"type": "array", "minItems": 2, "items": map[string]any{"type": "string"}},
						"correctIndex": map[string]any{"type": "integer", "minimum": 0},
					},
				},
			},
		},
	}
}

// SummarySchema describes a generated summary.
func SummarySchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"summary"},
		"properties": map[string]any{
			"summary":   map[string]any{"type": "string", "minLength": 1},
			"keyPoints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

// Schema is a compiled JSON schema.
type Schema struct {
	s *jsonschema.Schema
}

// CompileSchema compiles schemaMap once so it can validate many documents.
func CompileSchema(schemaMap map[string]any) (*Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{s: schema}, nil
}

// MustCompileSchema panics on an invalid schema; for package-level schemas.
func MustCompileSchema(schemaMap map[string]any) *Schema {
	s, err := CompileSchema(schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks an already-decoded JSON value.
func (s *Schema) Validate(v any) error {
	if err := s.s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
