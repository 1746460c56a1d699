// Package mapping translates merged section content into flat CRM custom values.
//
// Every mapper is a pure function of one section's content. Missing input produces
// no key; malformed input produces a Warning instead of an error.
package mapping

import (
	"fmt"
	"strings"
)

// Warning codes
const (
	WarnPlainString    = "plain_string"
	WarnMalformed      = "malformed"
	WarnMissingBody    = "missing_body"
	WarnMissingSubject = "missing_subject"
	WarnSMSTooLong     = "sms_too_long"
	WarnMissingKey     = "missing_critical_key"
)

// Warning describes degraded input that was tolerated
type Warning struct {
	Section  string `json:"section"`
	Key      string `json:"key"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Segments int    `json:"segments,omitempty"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s.%s: %s", w.Section, w.Key, w.Message)
}

// Result is the output of a mapper
type Result struct {
	Values   map[string]string `json:"values"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// Mapper maps one section's merged content
type Mapper func(section map[string]any) Result

func newResult() Result {
	return Result{Values: make(map[string]string)}
}

// set stores value even when empty; callers decide sparseness
func (r *Result) set(key, value string) {
	r.Values[key] = value
}

// setIfPresent stores value only when it is non-blank
func (r *Result) setIfPresent(key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	r.Values[key] = value
}

func (r *Result) warn(section, key, code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{
		Section: section,
		Key:     key,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}
