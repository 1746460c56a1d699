package mapping

import (
	"strings"
	"unicode/utf8"

	"github.com/jordanlanch/funnelsync/pkg/vault"
)

const (
	smsSingleLimit  = 160
	smsSegmentChars = 153
)

// SMSSegments returns how many outgoing segments a message needs
func SMSSegments(msg string) int {
	n := utf8.RuneCountInString(msg)
	switch {
	case n == 0:
		return 0
	case n <= smsSingleLimit:
		return 1
	default:
		return (n + smsSegmentChars - 1) / smsSegmentChars
	}
}

// SectionReport counts the entries of one section
type SectionReport struct {
	Complete  int `json:"complete"`
	Empty     int `json:"empty"`
	Malformed int `json:"malformed"`
}

// ValidationReport summarizes content readiness. It never blocks a push.
type ValidationReport struct {
	Sections map[string]SectionReport `json:"sections"`
	Warnings []Warning                `json:"warnings"`
}

// HasWarnings reports whether anything was flagged
func (v ValidationReport) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// Validate inspects merged content keyed by section id.
func Validate(content map[string]map[string]any) ValidationReport {
	report := ValidationReport{
		Sections: make(map[string]SectionReport, len(content)),
		Warnings: []Warning{},
	}

	for _, id := range vault.SectionIDs(content) {
		section := content[id]
		var sr SectionReport
		var warnings []Warning

		switch id {
		case vault.SectionEmails:
			sr, warnings = validateEmails(section)
		case vault.SectionSMS:
			sr, warnings = validateSMS(section)
		case vault.SectionAppointmentReminders:
			sr, warnings = validateReminders(section)
		default:
			sr = countEntries(section)
		}

		report.Sections[id] = sr
		report.Warnings = append(report.Warnings, warnings...)
	}
	return report
}

func validateEmails(section map[string]any) (SectionReport, []Warning) {
	var sr SectionReport
	var warnings []Warning
	paths := make([]string, 0, len(Slots)+1)
	for _, slot := range Slots {
		paths = append(paths, "email"+slot.Suffix)
	}
	paths = append(paths, "freeGiftEmail")

	for _, p := range paths {
		checkEmail(vault.SectionEmails, section, p, &sr, &warnings)
	}
	return sr, warnings
}

func validateSMS(section map[string]any) (SectionReport, []Warning) {
	var sr SectionReport
	var warnings []Warning
	for _, slot := range Slots {
		checkSMS(vault.SectionSMS, section, "sms"+slot.Suffix, &sr, &warnings)
	}
	return sr, warnings
}

func validateReminders(section map[string]any) (SectionReport, []Warning) {
	var sr SectionReport
	var warnings []Warning
	for _, step := range reminderSteps {
		checkEmail(vault.SectionAppointmentReminders, section, step.ID+".email", &sr, &warnings)
		checkSMS(vault.SectionAppointmentReminders, section, step.ID+".sms", &sr, &warnings)
	}
	return sr, warnings
}

func checkEmail(sectionID string, section map[string]any, path string, sr *SectionReport, warnings *[]Warning) {
	raw, found := vault.Lookup(section, path)
	if !found && !hasFlatChild(section, path) {
		return
	}

	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			sr.Empty++
			return
		}
		sr.Malformed++
		*warnings = append(*warnings, Warning{Section: sectionID, Key: path, Code: WarnPlainString,
			Message: "expected an email object with subject and body, got plain text"})
		return
	case map[string]any, nil:
	default:
		sr.Malformed++
		*warnings = append(*warnings, Warning{Section: sectionID, Key: path, Code: WarnMalformed,
			Message: "unexpected email value"})
		return
	}

	subject := vault.LookupString(section, path+".subject")
	body := vault.LookupString(section, path+".body")
	switch {
	case subject != "" && body != "":
		sr.Complete++
	case subject == "" && body == "":
		sr.Empty++
	case body == "":
		sr.Malformed++
		*warnings = append(*warnings, Warning{Section: sectionID, Key: path, Code: WarnMissingBody,
			Message: "subject is set but body is missing"})
	default:
		sr.Malformed++
		*warnings = append(*warnings, Warning{Section: sectionID, Key: path, Code: WarnMissingSubject,
			Message: "body is set but subject is missing"})
	}
}

func checkSMS(sectionID string, section map[string]any, path string, sr *SectionReport, warnings *[]Warning) {
	if _, found := vault.Lookup(section, path); !found && !hasFlatChild(section, path) {
		return
	}

	scratch := newResult()
	msg := readSMS(&scratch, sectionID, section, path)
	if len(scratch.Warnings) > 0 {
		sr.Malformed++
		*warnings = append(*warnings, scratch.Warnings...)
		return
	}
	if msg == "" {
		sr.Empty++
		return
	}
	sr.Complete++

	if segments := SMSSegments(msg); segments > 1 {
		*warnings = append(*warnings, Warning{
			Section:  sectionID,
			Key:      path,
			Code:     WarnSMSTooLong,
			Message:  "message exceeds 160 characters and will be sent as multiple segments",
			Segments: segments,
		})
	}
}

// hasFlatChild reports whether flat dotted keys exist under prefix
func hasFlatChild(section map[string]any, prefix string) bool {
	for k := range section {
		if strings.HasPrefix(k, prefix+".") {
			return true
		}
	}
	return false
}

func countEntries(section map[string]any) SectionReport {
	var sr SectionReport
	for _, v := range section {
		if isBlank(v) {
			sr.Empty++
			continue
		}
		sr.Complete++
	}
	return sr
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
