package kvo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrNotObject is returned when a document does not decode to a mapping.
var ErrNotObject = errors.New("document is not a key/value mapping")

// Codec turns a raw document into property values.
// Implement this interface for formats such as TOML or HCL.
type Codec interface {
	// Decode parses data into a map of property key to value.
	// An empty document decodes to an empty map.
	Decode(data []byte) (map[string]any, error)

	// ContentType returns the MIME type for observability and debugging.
	ContentType() string
}

// JSONCodec decodes JSON objects. Numbers arrive as float64.
type JSONCodec struct{}

// Decode implements Codec.
func (JSONCodec) Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("expected JSON: %w", err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, doc)
	}
	return m, nil
}

// ContentType returns the JSON MIME type.
func (JSONCodec) ContentType() string {
	return "application/json"
}

// YAMLCodec decodes YAML mappings with gopkg.in/yaml.v3. Integers arrive as
// int and floats as float64.
type YAMLCodec struct{}

// Decode implements Codec.
func (YAMLCodec) Decode(data []byte) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("expected YAML: %w", err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, doc)
	}
	return m, nil
}

// ContentType returns the YAML MIME type.
func (YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

// AutoCodec picks JSON when the document starts with '{' and YAML otherwise.
type AutoCodec struct{}

// Decode implements Codec.
func (AutoCodec) Decode(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return JSONCodec{}.Decode(data)
	}
	return YAMLCodec{}.Decode(data)
}

// ContentType reports the format is detected per document.
func (AutoCodec) ContentType() string {
	return "application/octet-stream"
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
	_ Codec = AutoCodec{}
)
