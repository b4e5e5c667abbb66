// Package elicit contains the elicitation stage: automatic collection of
// human-reviewed parameters through a single combined round trip to the
// client before a tool call proceeds.
package elicit

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/chughtapan/wags-gate/internal/domain/handler"
)

// BuildSchema assembles the combined elicitation schema for all annotated
// fields of one handler. Each field is typed per its declared base type, with
// the configured prompt as its description. A caller-supplied argument
// becomes the field's default; fields with no supplied value are required.
//
// One schema covers every field: the stage issues exactly one round trip per
// call, never one per field.
func BuildSchema(fields []handler.Param, args map[string]any) (json.RawMessage, error) {
	props := make(map[string]*jsonschema.Schema, len(fields))
	var required []string

	for _, f := range fields {
		prop := &jsonschema.Schema{
			Type:        string(f.Type),
			Description: f.ElicitPrompt,
		}
		if v, ok := args[f.Name]; ok {
			def, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshal default for field %q: %w", f.Name, err)
			}
			prop.Default = def
		} else {
			required = append(required, f.Name)
		}
		props[f.Name] = prop
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal elicitation schema: %w", err)
	}
	return raw, nil
}

// Fingerprint returns a stable hash of the marshaled schema, used to
// correlate elicitation requests in debug logs.
func Fingerprint(raw json.RawMessage) uint64 {
	return xxhash.Sum64(raw)
}
