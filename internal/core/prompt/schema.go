package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compileSchema accepts an object whose template keys hold scalars or lists
// of scalars. Unknown keys are allowed; missing keys are filled later.
func compileSchema(keys []string) (*jsonschema.Schema, error) {
	scalar := map[string]any{"type": []string{"string", "number", "boolean", "null"}}
	value := map[string]any{
		"anyOf": []any{
			scalar,
			map[string]any{"type": "array", "items": scalar},
		},
	}
	properties := make(map[string]any, len(keys))
	for _, key := range keys {
		properties[key] = value
	}
	schemaMap := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": properties,
	}

	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal response schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add response schema: %w", err)
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return schema, nil
}
