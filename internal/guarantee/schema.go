// schema.go - JSON Schema check for model responses

package guarantee

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compiledSchema *jsonschema.Schema
	schemaErr      error
	schemaOnce     sync.Once
)

// ResponseSchema returns the JSON Schema the model output is expected to
// satisfy: an object carrying every key, each a string or null.
func ResponseSchema() map[string]any {
	props := make(map[string]any, len(Keys))
	for _, k := range Keys {
		props[k] = map[string]any{"type": []string{"string", "null"}}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   Keys,
	}
}

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(ResponseSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("guarantee.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("guarantee.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks a decoded model response against ResponseSchema. The
// result is advisory: callers log violations and still use the data.
func Validate(decoded map[string]any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	// Round-trip so the validator sees plain JSON types.
	b, err := json.Marshal(decoded)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
