package vault

import (
	"sort"
	"strconv"
	"strings"
)

// MergeMaps overlays overrides onto blob. Overrides win on key collision and blob
// keys without an override pass through. Neither input is modified.
func MergeMaps(blob, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(blob)+len(overrides))
	for k, v := range blob {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Merge overlays a section's field rows onto its vault_content blob.
// Dotted field ids stay flat keys; Lookup resolves them before nested objects so
// the field row keeps precedence over the blob's nested copy.
func Merge(blob map[string]any, overrides []Field) map[string]any {
	fieldValues := make(map[string]any, len(overrides))
	for _, f := range overrides {
		fieldValues[f.FieldID] = f.Value.Any()
	}
	return MergeMaps(NormalizeBlob(blob), fieldValues)
}

// MergeAll builds the merged content of every section of a funnel, keyed by
// section id. Sections that only exist as field rows are included.
func MergeAll(sections []Section, fields []Field) map[string]map[string]any {
	bySection := make(map[string][]Field)
	for _, f := range fields {
		bySection[f.SectionID] = append(bySection[f.SectionID], f)
	}

	out := make(map[string]map[string]any, len(sections)+len(bySection))
	for _, s := range sections {
		out[s.SectionID] = Merge(s.Content, bySection[s.SectionID])
	}
	for sectionID, sectionFields := range bySection {
		if _, seen := out[sectionID]; seen {
			continue
		}
		out[sectionID] = Merge(nil, sectionFields)
	}
	return out
}

// Lookup resolves a dot-separated path inside merged content.
// A flat key equal to the remaining path always wins over nested traversal.
// Numeric segments index into arrays.
func Lookup(content map[string]any, path string) (any, bool) {
	if content == nil || path == "" {
		return nil, false
	}
	if v, ok := content[path]; ok {
		return v, true
	}

	// Try every split point so keys that themselves contain dots still resolve.
	for i := 0; i < len(path); i++ {
		if path[i] != '.' {
			continue
		}
		head, rest := path[:i], path[i+1:]
		v, ok := content[head]
		if !ok {
			continue
		}
		if found, ok := lookupIn(v, rest); ok {
			return found, true
		}
	}
	return nil, false
}

func lookupIn(v any, path string) (any, bool) {
	switch node := v.(type) {
	case map[string]any:
		return Lookup(node, path)
	case []any:
		head, rest, hasRest := strings.Cut(path, ".")
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}
		if !hasRest {
			return node[idx], true
		}
		return lookupIn(node[idx], rest)
	}
	return nil, false
}

// LookupString resolves path and stringifies the result, trimming whitespace.
func LookupString(content map[string]any, path string) string {
	v, ok := Lookup(content, path)
	if !ok {
		return ""
	}
	return strings.TrimSpace(Stringify(v))
}

// SectionIDs returns the section ids of merged content in sorted order
func SectionIDs(content map[string]map[string]any) []string {
	ids := make([]string, 0, len(content))
	for id := range content {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
