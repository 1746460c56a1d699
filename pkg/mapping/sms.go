package mapping

import (
	"strings"

	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// readSMS reads a text message stored either as a string or as {message}.
func readSMS(r *Result, section string, content map[string]any, path string) string {
	raw, found := vault.Lookup(content, path)
	if !found {
		return firstString(content, path+".message", path+".text")
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return firstString(v, "message", "text", "body")
	case nil:
		return ""
	case []any:
		r.warn(section, path, WarnMalformed, "expected a text message, got a list")
		return ""
	default:
		return strings.TrimSpace(vault.Stringify(v))
	}
}

// MapSMS maps the sms section to one plain-text key per populated slot.
func MapSMS(content map[string]any) Result {
	r := newResult()
	if len(content) == 0 {
		return r
	}

	for _, slot := range Slots {
		msg := readSMS(&r, vault.SectionSMS, content, "sms"+slot.Suffix)
		r.setIfPresent("Optin_SMS "+slot.Label(), msg)
	}
	return r
}
