// Package vault models generated marketing content at the Field Store boundary:
// sections, their typed fields, and the merged per-section content the mappers read.
package vault

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FieldType is the declared type of a field
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeArray    FieldType = "array"
	FieldTypeObject   FieldType = "object"
	FieldTypeImage    FieldType = "image"
	FieldTypeVideoURL FieldType = "video_url"
)

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeArray, FieldTypeObject, FieldTypeImage, FieldTypeVideoURL:
		return true
	}
	return false
}

// Kind tags the shape held by a Value
type Kind string

const (
	KindText   Kind = "text"
	KindArray  Kind = "array"
	KindObject Kind = "object"
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
)

// KindFor returns the value kind a field type is expected to hold
func KindFor(t FieldType) Kind {
	switch t {
	case FieldTypeArray:
		return KindArray
	case FieldTypeObject:
		return KindObject
	case FieldTypeImage:
		return KindImage
	case FieldTypeVideoURL:
		return KindVideo
	default:
		return KindText
	}
}

// Value is a tagged union over the shapes a field value can take.
// Exactly one of Text, Items or Object is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Text   string
	Items  []any
	Object map[string]any
}

// TextValue builds a text value
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Any returns the plain Go representation used in merged content
func (v Value) Any() any {
	switch v.Kind {
	case KindArray:
		return v.Items
	case KindObject:
		return v.Object
	default:
		return v.Text
	}
}

// IsEmpty reports whether the value carries no content
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindArray:
		return len(v.Items) == 0
	case KindObject:
		return len(v.Object) == 0
	default:
		return strings.TrimSpace(v.Text) == ""
	}
}

// Subfield describes one named key of an object field or of array items
type Subfield struct {
	Key      string `json:"key"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Metadata is the field_metadata column
type Metadata struct {
	Label     string     `json:"label,omitempty"`
	Subfields []Subfield `json:"subfields,omitempty"`
}

// Field is the atomic editable unit of a section
type Field struct {
	FunnelID   string    `json:"funnel_id"`
	SectionID  string    `json:"section_id"`
	FieldID    string    `json:"field_id"`
	Type       FieldType `json:"field_type"`
	Value      Value     `json:"-"`
	IsApproved bool      `json:"is_approved"`
	Version    int       `json:"version"`
	IsCustom   bool      `json:"is_custom"`
	Metadata   Metadata  `json:"field_metadata"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarshalJSON exposes the parsed value as field_value
func (f Field) MarshalJSON() ([]byte, error) {
	type alias Field
	return json.Marshal(struct {
		alias
		FieldValue any `json:"field_value"`
	}{alias: alias(f), FieldValue: f.Value.Any()})
}

// Section is a named content group with its denormalized vault_content blob
type Section struct {
	FunnelID  string         `json:"funnel_id"`
	SectionID string         `json:"section_id"`
	Content   map[string]any `json:"vault_content"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Well-known section ids
const (
	SectionIdealClient          = "idealClient"
	SectionMessage              = "message"
	SectionOffer                = "offer"
	SectionEmails               = "emails"
	SectionSMS                  = "sms"
	SectionAppointmentReminders = "appointmentReminders"
	SectionFunnelCopy           = "funnelCopy"
	SectionBranding             = "branding"
	SectionImages               = "images"
	SectionBusiness             = "business"
)

// Stringify renders any merged-content value as the string sent to the CRM.
// Arrays of scalars are joined by newlines; other composites are JSON encoded.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case map[string]any, []any:
				b, err := json.Marshal(t)
				if err != nil {
					return ""
				}
				return string(b)
			}
			if s := Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
