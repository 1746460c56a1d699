package vault

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeMaps_OverrideWins(t *testing.T) {
	blob := map[string]any{"a": 1, "b": 2}
	overrides := map[string]any{"b": 3, "c": 4}

	merged := MergeMaps(blob, overrides)

	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(t, 2, blob["b"], "blob must not be modified")
}

func TestMerge_FieldRowsOverBlob(t *testing.T) {
	blob := map[string]any{
		"email1": map[string]any{"subject": "old"},
		"email2": `{"subject":"from blob string"}`,
	}
	fields := []Field{
		{SectionID: SectionEmails, FieldID: "email1", Type: FieldTypeObject,
			Value: Value{Kind: KindObject, Object: map[string]any{"subject": "new"}}},
	}

	merged := Merge(blob, fields)

	assert.Equal(t, map[string]any{"subject": "new"}, merged["email1"])
	assert.Equal(t, map[string]any{"subject": "from blob string"}, merged["email2"])
}

func TestMergeAll_IncludesFieldOnlySections(t *testing.T) {
	sections := []Section{
		{SectionID: SectionMessage, Content: map[string]any{"coreMessage": "Grow faster"}},
	}
	fields := []Field{
		{SectionID: SectionSMS, FieldID: "sms1", Type: FieldTypeText, Value: TextValue("hello")},
	}

	merged := MergeAll(sections, fields)

	require.Len(t, merged, 2)
	assert.Equal(t, "Grow faster", merged[SectionMessage]["coreMessage"])
	assert.Equal(t, "hello", merged[SectionSMS]["sms1"])
	assert.Equal(t, []string{SectionMessage, SectionSMS}, SectionIDs(merged))
}

func TestLookup(t *testing.T) {
	content := map[string]any{
		"optinPage.headline_text": "flat wins",
		"optinPage": map[string]any{
			"headline_text": "nested",
			"subheadline":   "only nested",
		},
		"salesPage": map[string]any{
			"faq": []any{
				map[string]any{"question": "Q1"},
				map[string]any{"question": "Q2"},
			},
		},
	}

	tests := []struct {
		name  string
		path  string
		want  any
		found bool
	}{
		{name: "flat dotted key before nested", path: "optinPage.headline_text", want: "flat wins", found: true},
		{name: "nested object", path: "optinPage.subheadline", want: "only nested", found: true},
		{name: "array index", path: "salesPage.faq.1.question", want: "Q2", found: true},
		{name: "index out of range", path: "salesPage.faq.5.question", found: false},
		{name: "missing", path: "bookingPage.headline_text", found: false},
		{name: "empty path", path: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(content, tt.path)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name   string
		typ    FieldType
		raw    string
		kind   Kind
		want   any
		parsed bool
	}{
		{name: "array json", typ: FieldTypeArray, raw: `["a","b"]`, kind: KindArray, want: []any{"a", "b"}, parsed: true},
		{name: "double encoded array", typ: FieldTypeArray, raw: `"[\"a\"]"`, kind: KindArray, want: []any{"a"}, parsed: true},
		{name: "object json", typ: FieldTypeObject, raw: `{"subject":"Hi"}`, kind: KindObject, want: map[string]any{"subject": "Hi"}, parsed: true},
		{name: "broken array degrades to text", typ: FieldTypeArray, raw: `[not json`, kind: KindText, want: "[not json", parsed: false},
		{name: "object given array degrades", typ: FieldTypeObject, raw: `["x"]`, kind: KindText, want: `["x"]`, parsed: false},
		{name: "empty array", typ: FieldTypeArray, raw: "", kind: KindArray, want: []any{}, parsed: true},
		{name: "quoted text", typ: FieldTypeText, raw: `"hello"`, kind: KindText, want: "hello", parsed: true},
		{name: "plain text", typ: FieldTypeTextarea, raw: "hello\nworld", kind: KindText, want: "hello\nworld", parsed: true},
		{name: "image url", typ: FieldTypeImage, raw: "https://cdn.example.com/a.png", kind: KindImage, want: "https://cdn.example.com/a.png", parsed: true},
		{name: "image record", typ: FieldTypeImage, raw: `{"url":"https://cdn.example.com/b.png"}`, kind: KindImage, want: "https://cdn.example.com/b.png", parsed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ParseValue(tt.typ, tt.raw)
			assert.Equal(t, tt.parsed, ok)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.want, v.Any())
		})
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "3.5", Stringify(3.5))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "one\ntwo", Stringify([]any{"one", "", "two"}))
	assert.Equal(t, `[{"q":"a"}]`, Stringify([]any{map[string]any{"q": "a"}}))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
}

func TestField_MarshalJSON(t *testing.T) {
	f := Field{FieldID: "bullets", Type: FieldTypeArray, Value: Value{Kind: KindArray, Items: []any{"x"}}}

	b, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, []any{"x"}, decoded["field_value"])
	assert.Equal(t, "array", decoded["field_type"])
}

func TestCheckShape(t *testing.T) {
	meta := Metadata{Subfields: []Subfield{
		{Key: "question", Required: true},
		{Key: "answer", Required: true},
	}}

	t.Run("array of complete objects passes", func(t *testing.T) {
		f := Field{SectionID: SectionFunnelCopy, FieldID: "salesPage.faq", Type: FieldTypeArray, Metadata: meta,
			Value: Value{Kind: KindArray, Items: []any{map[string]any{"question": "Q", "answer": "A"}}}}
		assert.NoError(t, CheckShape(f))
	})

	t.Run("array of strings passes", func(t *testing.T) {
		f := Field{FieldID: "bullets", Type: FieldTypeArray, Metadata: meta,
			Value: Value{Kind: KindArray, Items: []any{"one", "two"}}}
		assert.NoError(t, CheckShape(f))
	})

	t.Run("missing required subfield fails", func(t *testing.T) {
		f := Field{SectionID: SectionFunnelCopy, FieldID: "salesPage.faq", Type: FieldTypeArray, Metadata: meta,
			Value: Value{Kind: KindArray, Items: []any{map[string]any{"question": "Q"}}}}
		err := CheckShape(f)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "salesPage.faq")
	})

	t.Run("object missing key fails", func(t *testing.T) {
		f := Field{FieldID: "email1", Type: FieldTypeObject, Metadata: meta,
			Value: Value{Kind: KindObject, Object: map[string]any{"answer": "A"}}}
		assert.Error(t, CheckShape(f))
	})

	t.Run("no subfields is not checked", func(t *testing.T) {
		f := Field{FieldID: "x", Type: FieldTypeObject, Value: Value{Kind: KindObject, Object: map[string]any{}}}
		assert.NoError(t, CheckShape(f))
	})
}
