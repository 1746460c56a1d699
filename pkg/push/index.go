package push

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/jordanlanch/funnelsync/pkg/crm"
)

// NormalizeName lowercases a custom value name and collapses whitespace runs
// to a single underscore: "02 VSL  Text" => "02_vsl_text".
func NormalizeName(name string) string {
	lowered := cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(name)))
	return strings.Join(strings.FieldsFunc(lowered, unicode.IsSpace), "_")
}

// foldName is the case-insensitive lookup form. Casers keep state, so each
// call gets its own.
func foldName(name string) string {
	return cases.Fold().String(name)
}

// RemoteIndex looks up remote custom values by exact, case-insensitive and
// normalized name, in that order.
type RemoteIndex struct {
	exact      map[string]crm.CustomValue
	lower      map[string]crm.CustomValue
	normalized map[string]crm.CustomValue
}

// NewRemoteIndex builds an index over a remote snapshot. On collisions the
// first entry wins for every lookup tier.
func NewRemoteIndex(values []crm.CustomValue) *RemoteIndex {
	idx := &RemoteIndex{
		exact:      make(map[string]crm.CustomValue, len(values)),
		lower:      make(map[string]crm.CustomValue, len(values)),
		normalized: make(map[string]crm.CustomValue, len(values)),
	}
	for _, v := range values {
		idx.Add(v)
	}
	return idx
}

// Add inserts a value without replacing existing entries
func (idx *RemoteIndex) Add(v crm.CustomValue) {
	if _, ok := idx.exact[v.Name]; !ok {
		idx.exact[v.Name] = v
	}
	lower := foldName(v.Name)
	if _, ok := idx.lower[lower]; !ok {
		idx.lower[lower] = v
	}
	normalized := NormalizeName(v.Name)
	if _, ok := idx.normalized[normalized]; !ok {
		idx.normalized[normalized] = v
	}
}

// Set records a new value for an existing entry after an update
func (idx *RemoteIndex) Set(v crm.CustomValue) {
	idx.exact[v.Name] = v
	idx.lower[foldName(v.Name)] = v
	idx.normalized[NormalizeName(v.Name)] = v
}

// Find resolves a desired key to a remote entry
func (idx *RemoteIndex) Find(name string) (crm.CustomValue, bool) {
	if v, ok := idx.exact[name]; ok {
		return v, true
	}
	if v, ok := idx.lower[foldName(name)]; ok {
		return v, true
	}
	if v, ok := idx.normalized[NormalizeName(name)]; ok {
		return v, true
	}
	return crm.CustomValue{}, false
}

// Len returns the number of distinct exact names
func (idx *RemoteIndex) Len() int {
	return len(idx.exact)
}
