// Package customvalues combines every mapper's output into the desired CRM state.
package customvalues

import (
	"sort"
	"strings"

	"github.com/jordanlanch/funnelsync/pkg/mapping"
	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// Aggregate is the complete desired remote state for a funnel
type Aggregate struct {
	Values    map[string]string `json:"values"`
	Warnings  []mapping.Warning `json:"warnings"`
	Inferred  []string          `json:"inferred"`
	Defaulted []string          `json:"defaulted"`
}

// Keys returns the value keys sorted
func (a *Aggregate) Keys() []string {
	keys := make([]string, 0, len(a.Values))
	for k := range a.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type sectionMapper struct {
	section string
	mapper  mapping.Mapper
}

// Order is precedence: later mappers overwrite earlier ones on shared keys.
// Branding and images are the substrate; the direct mappers are authoritative.
var pipeline = []sectionMapper{
	{section: vault.SectionBranding, mapper: mapping.MapBranding},
	{section: vault.SectionImages, mapper: mapping.MapImages},
	{section: vault.SectionEmails, mapper: mapping.MapEmails},
	{section: vault.SectionSMS, mapper: mapping.MapSMS},
	{section: vault.SectionAppointmentReminders, mapper: mapping.MapAppointmentReminders},
	{section: vault.SectionFunnelCopy, mapper: mapping.MapFunnelCopy},
}

// Build runs every mapper against its section, fills missing master keys and
// strips blank values.
func Build(content map[string]map[string]any) *Aggregate {
	return BuildWithRules(content, MasterKeys)
}

// BuildWithRules is Build with a custom master key list
func BuildWithRules(content map[string]map[string]any, rules []Rule) *Aggregate {
	agg := &Aggregate{
		Values:    make(map[string]string),
		Warnings:  []mapping.Warning{},
		Inferred:  []string{},
		Defaulted: []string{},
	}

	for _, step := range pipeline {
		section, ok := content[step.section]
		if !ok {
			continue
		}
		r := step.mapper(section)
		for k, v := range r.Values {
			agg.Values[k] = v
		}
		agg.Warnings = append(agg.Warnings, r.Warnings...)
	}

	inferred, defaulted := infer(agg.Values, content, rules)
	agg.Inferred = append(agg.Inferred, inferred...)
	agg.Defaulted = append(agg.Defaulted, defaulted...)
	for _, key := range defaulted {
		agg.Warnings = append(agg.Warnings, mapping.Warning{
			Section: "inference",
			Key:     key,
			Code:    mapping.WarnMissingKey,
			Message: "critical key had no source content; using default",
		})
	}

	for k, v := range agg.Values {
		if strings.TrimSpace(v) == "" {
			delete(agg.Values, k)
		}
	}

	sort.Strings(agg.Inferred)
	sort.Strings(agg.Defaulted)
	return agg
}
