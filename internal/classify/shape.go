package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// Shape describes the success payload expected from one operation type, so
// the same classifier serves every operation.
type Shape interface {
	// Name identifies the shape in logs and errors.
	Name() string
	// Decode parses a success body. It must not panic on malformed input.
	Decode(data []byte) (any, error)
}

// JSONShape decodes a success body into T, optionally checking it against a
// JSON Schema first.
type JSONShape[T any] struct {
	name   string
	schema *jsonschema.Schema
	strict bool
}

// NewJSONShape creates a shape without schema validation.
func NewJSONShape[T any](name string) *JSONShape[T] {
	return &JSONShape[T]{name: name}
}

// WithSchema compiles schemaMap and validates every body against it before decoding.
func (s *JSONShape[T]) WithSchema(schemaMap map[string]any) (*JSONShape[T], error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(s.name+".json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(s.name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	s.schema = schema
	return s, nil
}

// Strict rejects unknown fields while decoding into T.
func (s *JSONShape[T]) Strict() *JSONShape[T] {
	s.strict = true
	return s
}

func (s *JSONShape[T]) Name() string {
	return s.name
}

func (s *JSONShape[T]) Decode(data []byte) (any, error) {
	if s.schema != nil {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", s.name, err)
		}
		if err := s.schema.Validate(v); err != nil {
			return nil, fmt.Errorf("%s does not match schema: %w", s.name, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if s.strict {
		dec.DisallowUnknownFields()
	}
	var out T
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.name, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: trailing data after payload", s.name)
	}
	return out, nil
}

// recognizeSpeechSchema matches {"document": [{"content": "...", "offset": 0}, ...]}.
var recognizeSpeechSchema = map[string]any{
	"type":     "object",
	"required": []string{"document"},
	"properties": map[string]any{
		"document": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"content", "offset"},
				"properties": map[string]any{
					"content": map[string]any{"type": "string"},
					"offset":  map[string]any{"type": "integer", "minimum": 0},
				},
			},
		},
	},
}

// RecognizeSpeechShape returns the document-list shape of the speech
// recognition operation. Decode yields a domain.RecognizeSpeechResult.
func RecognizeSpeechShape() Shape {
	s, err := NewJSONShape[domain.RecognizeSpeechResult]("recognize_speech").WithSchema(recognizeSpeechSchema)
	if err != nil {
		// static schema
		panic(err)
	}
	return s
}

// ParseCustom decodes a body the generic classifier reported as
// Unrecognized into a caller-defined type.
func ParseCustom[T any](raw string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("parse custom response: %w", err)
	}
	return out, nil
}
