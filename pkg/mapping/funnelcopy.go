package mapping

import (
	"strconv"
	"strings"

	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// listSpec maps an array field to indexed keys.
// With Parts each item is an object: {prefix}{Singular}_{part}_{n}_text.
// Without Parts each item is a string: {prefix}{Singular}_{n}_text.
type listSpec struct {
	Field    string
	Singular string
	Parts    []string
	Max      int
}

type pageSpec struct {
	ID     string
	Prefix string
	Fields []string
	Lists  []listSpec
}

// Fields every page renders; optinPage supplies them to the others.
var sharedPageFields = []string{"logo_image", "footer_company_name"}

var funnelPages = []pageSpec{
	{
		ID:     "optinPage",
		Prefix: "02_optin_",
		Fields: []string{
			"headline_text", "subheadline_text", "cta_button_text", "form_headline_text",
			"privacy_note_text", "mockup_image", "logo_image", "footer_company_name",
		},
		Lists: []listSpec{
			{Field: "bullets", Singular: "bullet", Max: 6},
		},
	},
	{
		ID:     "salesPage",
		Prefix: "02_vsl_",
		Fields: []string{
			"headline_text", "subheadline_text", "video_url", "cta_button_text", "cta_headline_text",
			"about_headline_text", "about_body_text", "offer_headline_text", "offer_body_text",
			"guarantee_text", "logo_image", "footer_company_name",
		},
		Lists: []listSpec{
			{Field: "benefits", Singular: "benefit", Max: 8},
			{Field: "testimonials", Singular: "testimonial", Parts: []string{"name", "quote"}, Max: 6},
			{Field: "faq", Singular: "faq", Parts: []string{"question", "answer"}, Max: 10},
		},
	},
	{
		ID:     "bookingPage",
		Prefix: "02_booking_",
		Fields: []string{
			"headline_text", "subheadline_text", "calendar_headline_text", "cta_button_text",
			"logo_image", "footer_company_name",
		},
		Lists: []listSpec{
			{Field: "expectations", Singular: "expectation", Max: 5},
		},
	},
	{
		ID:     "thankYouPage",
		Prefix: "02_thankyou_",
		Fields: []string{
			"headline_text", "subheadline_text", "video_url", "logo_image", "footer_company_name",
		},
		Lists: []listSpec{
			{Field: "next_steps", Singular: "next_step", Max: 5},
		},
	},
}

// MapFunnelCopy maps the four funnel pages into their prefixed key namespaces.
func MapFunnelCopy(content map[string]any) Result {
	r := newResult()
	if len(content) == 0 {
		return r
	}

	shared := make(map[string]string, len(sharedPageFields))
	for _, f := range sharedPageFields {
		shared[f] = pageValue(content, "optinPage."+f)
	}

	for _, page := range funnelPages {
		for _, f := range page.Fields {
			value := pageValue(content, page.ID+"."+f)
			if value == "" {
				value = shared[f]
			}
			r.setIfPresent(page.Prefix+f, value)
		}
		for _, list := range page.Lists {
			mapList(&r, content, page, list)
		}
	}
	return r
}

func mapList(r *Result, content map[string]any, page pageSpec, list listSpec) {
	path := page.ID + "." + list.Field
	raw, found := vault.Lookup(content, path)
	if !found || raw == nil {
		return
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case string:
		if strings.TrimSpace(v) == "" {
			return
		}
		parsed, ok := vault.ParseValue(vault.FieldTypeArray, v)
		if !ok {
			r.warn(vault.SectionFunnelCopy, path, WarnMalformed, "expected a list, got text")
			return
		}
		items = parsed.Items
	default:
		r.warn(vault.SectionFunnelCopy, path, WarnMalformed, "expected a list, got %T", raw)
		return
	}

	if len(items) > list.Max {
		items = items[:list.Max]
	}

	for i, item := range items {
		n := strconv.Itoa(i + 1)
		if len(list.Parts) == 0 {
			r.setIfPresent(page.Prefix+list.Singular+"_"+n+"_text", strings.TrimSpace(vault.Stringify(item)))
			continue
		}
		obj, ok := item.(map[string]any)
		if !ok {
			r.warn(vault.SectionFunnelCopy, path+"."+strconv.Itoa(i), WarnMalformed, "expected an object with %s", strings.Join(list.Parts, "/"))
			continue
		}
		for _, part := range list.Parts {
			r.setIfPresent(page.Prefix+list.Singular+"_"+part+"_"+n+"_text", vault.LookupString(obj, part))
		}
	}
}

// pageValue reads a scalar page field. Image records resolve to their url.
func pageValue(content map[string]any, path string) string {
	raw, found := vault.Lookup(content, path)
	if !found {
		return ""
	}
	if obj, ok := raw.(map[string]any); ok {
		return firstString(obj, "url", "image_url", "src")
	}
	return strings.TrimSpace(vault.Stringify(raw))
}
