package vault

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const shapeSchemaURL = "field-shape.json"

// CheckShape validates an array or object value against the subfields declared in
// the field metadata. Fields without subfields, and text-like fields, always pass.
func CheckShape(f Field) error {
	if len(f.Metadata.Subfields) == 0 {
		return nil
	}
	if f.Value.Kind != KindArray && f.Value.Kind != KindObject {
		return nil
	}

	schema, err := compileShape(f.Value.Kind, f.Metadata.Subfields)
	if err != nil {
		return fmt.Errorf("failed to compile shape for %s.%s: %w", f.SectionID, f.FieldID, err)
	}

	instance, err := toInstance(f.Value.Any())
	if err != nil {
		return fmt.Errorf("failed to encode %s.%s: %w", f.SectionID, f.FieldID, err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%s.%s does not match its declared subfields: %w", f.SectionID, f.FieldID, err)
	}
	return nil
}

func compileShape(kind Kind, subfields []Subfield) (*jsonschema.Schema, error) {
	object := objectSchema(subfields)

	var doc map[string]any
	if kind == KindArray {
		doc = map[string]any{
			"type": "array",
			"items": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string"},
					object,
				},
			},
		}
	} else {
		doc = object
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(shapeSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(shapeSchemaURL)
}

func objectSchema(subfields []Subfield) map[string]any {
	properties := make(map[string]any, len(subfields))
	required := make([]any, 0, len(subfields))
	for _, sf := range subfields {
		switch sf.Type {
		case "array":
			properties[sf.Key] = map[string]any{"type": "array"}
		case "object":
			properties[sf.Key] = map[string]any{"type": "object"}
		default:
			properties[sf.Key] = map[string]any{"type": []any{"string", "number", "boolean", "null"}}
		}
		if sf.Required {
			required = append(required, sf.Key)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// toInstance round-trips v through the validator's own decoder so numbers arrive
// as json.Number.
func toInstance(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}
