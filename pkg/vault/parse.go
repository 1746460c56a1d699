package vault

import (
	"encoding/json"
	"strings"
)

// ParseValue turns a stored field_value into a typed Value.
//
// Array and object fields are stored as JSON; anything that does not decode into
// the expected shape degrades to an opaque text value and ok is false. Text-like
// fields accept either a bare string or a JSON string literal.
func ParseValue(t FieldType, raw string) (v Value, ok bool) {
	kind := KindFor(t)
	trimmed := strings.TrimSpace(raw)

	switch kind {
	case KindArray, KindObject:
		if trimmed == "" {
			if kind == KindArray {
				return Value{Kind: KindArray, Items: []any{}}, true
			}
			return Value{Kind: KindObject, Object: map[string]any{}}, true
		}
		decoded, err := decodeJSON(trimmed)
		if err != nil {
			return TextValue(raw), false
		}
		// Double-encoded values show up in older rows: "[\"a\"]"
		if s, isString := decoded.(string); isString {
			if again, err := decodeJSON(strings.TrimSpace(s)); err == nil {
				decoded = again
			}
		}
		switch d := decoded.(type) {
		case []any:
			if kind == KindArray {
				return Value{Kind: KindArray, Items: d}, true
			}
		case map[string]any:
			if kind == KindObject {
				return Value{Kind: KindObject, Object: d}, true
			}
		}
		return TextValue(raw), false

	case KindImage, KindVideo:
		text := unquote(trimmed)
		// Image rows sometimes hold the whole upload record
		if strings.HasPrefix(text, "{") {
			if decoded, err := decodeJSON(text); err == nil {
				if obj, isObj := decoded.(map[string]any); isObj {
					for _, key := range []string{"url", "image_url", "src"} {
						if s, isString := obj[key].(string); isString && s != "" {
							return Value{Kind: kind, Text: s}, true
						}
					}
				}
			}
			return Value{Kind: kind, Text: raw}, false
		}
		return Value{Kind: kind, Text: text}, true

	default:
		return TextValue(unquote(raw)), true
	}
}

// NormalizeBlob decodes JSON-serialized arrays and objects that were stored as
// strings inside a section blob. Values that fail to decode are kept as-is.
func NormalizeBlob(blob map[string]any) map[string]any {
	out := make(map[string]any, len(blob))
	for k, v := range blob {
		s, isString := v.(string)
		if !isString {
			out[k] = v
			continue
		}
		trimmed := strings.TrimSpace(s)
		if !(strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")) {
			out[k] = v
			continue
		}
		decoded, err := decodeJSON(trimmed)
		if err != nil {
			out[k] = v
			continue
		}
		out[k] = decoded
	}
	return out
}

func decodeJSON(s string) (any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func unquote(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		var out string
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	return s
}

// EncodeValue is the inverse of ParseValue: text-like values are stored raw,
// arrays and objects as JSON.
func EncodeValue(v Value) (string, error) {
	switch v.Kind {
	case KindArray:
		items := v.Items
		if items == nil {
			items = []any{}
		}
		b, err := json.Marshal(items)
		return string(b), err
	case KindObject:
		obj := v.Object
		if obj == nil {
			obj = map[string]any{}
		}
		b, err := json.Marshal(obj)
		return string(b), err
	default:
		return v.Text, nil
	}
}

// Issue is a field that could not be read as its declared type
type Issue struct {
	SectionID string `json:"section_id"`
	FieldID   string `json:"field_id"`
	Message   string `json:"message"`
}
