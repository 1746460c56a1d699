package mapping

import (
	"strings"

	"github.com/jordanlanch/funnelsync/pkg/vault"
)

type emailParts struct {
	Subject   string
	Body      string
	Preheader string
}

func (p emailParts) populated() bool {
	return p.Subject != "" || p.Body != ""
}

// readEmail reads an email object at path. Flat dotted keys ("email1.subject")
// and nested objects are both accepted. A plain string is taken as the body.
func readEmail(r *Result, section string, content map[string]any, path string) (emailParts, bool) {
	if raw, found := vault.Lookup(content, path); found {
		switch v := raw.(type) {
		case string:
			body := strings.TrimSpace(v)
			if body == "" {
				return emailParts{}, false
			}
			r.warn(section, path, WarnPlainString, "expected an email object, got plain text; using it as the body")
			return emailParts{Body: body}, true
		case map[string]any, nil:
		default:
			r.warn(section, path, WarnMalformed, "unexpected email value of type %T", raw)
			return emailParts{}, false
		}
	}

	parts := emailParts{
		Subject:   vault.LookupString(content, path+".subject"),
		Body:      vault.LookupString(content, path+".body"),
		Preheader: firstString(content, path+".preview", path+".preheader"),
	}
	return parts, parts.populated()
}

// MapEmails maps the emails section. Each populated slot yields exactly three keys.
func MapEmails(content map[string]any) Result {
	r := newResult()
	if len(content) == 0 {
		return r
	}

	for _, slot := range Slots {
		parts, ok := readEmail(&r, vault.SectionEmails, content, "email"+slot.Suffix)
		if !ok {
			continue
		}
		label := slot.Label()
		r.set("Optin_Email_Subject "+label, parts.Subject)
		r.set("Optin_Email_Body "+label, EmailBody(parts.Body))
		r.set("Optin_Email_Preheader "+label, parts.Preheader)
	}

	if parts, ok := readEmail(&r, vault.SectionEmails, content, "freeGiftEmail"); ok {
		r.set("Free_Gift_Email_Subject", parts.Subject)
		r.set("Free_Gift_Email_Body", EmailBody(parts.Body))
		r.set("Free_Gift_Email_Preheader", parts.Preheader)
	}

	return r
}

func firstString(content map[string]any, paths ...string) string {
	for _, p := range paths {
		if s := vault.LookupString(content, p); s != "" {
			return s
		}
	}
	return ""
}
