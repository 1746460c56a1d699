package mapping

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// ColorScheme is a brand palette
type ColorScheme struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
}

// DefaultColorScheme is used when no color can be recognized
var DefaultColorScheme = ColorScheme{Primary: "#06b6d4", Secondary: "#0e7490", Accent: "#22d3ee"}

type colorFamily struct {
	name    string
	words   []string
	palette ColorScheme
}

var colorFamilies = []colorFamily{
	{name: "red", words: []string{"red", "crimson", "scarlet", "maroon"},
		palette: ColorScheme{Primary: "#dc2626", Secondary: "#991b1b", Accent: "#ef4444"}},
	{name: "blue", words: []string{"blue", "navy", "azure", "cobalt"},
		palette: ColorScheme{Primary: "#2563eb", Secondary: "#1e40af", Accent: "#3b82f6"}},
	{name: "green", words: []string{"green", "emerald", "olive", "sage"},
		palette: ColorScheme{Primary: "#16a34a", Secondary: "#166534", Accent: "#22c55e"}},
	{name: "purple", words: []string{"purple", "violet", "lavender", "plum"},
		palette: ColorScheme{Primary: "#9333ea", Secondary: "#6b21a8", Accent: "#a855f7"}},
	{name: "orange", words: []string{"orange", "coral", "tangerine"},
		palette: ColorScheme{Primary: "#ea580c", Secondary: "#9a3412", Accent: "#f97316"}},
	{name: "pink", words: []string{"pink", "magenta", "fuchsia", "rose"},
		palette: ColorScheme{Primary: "#db2777", Secondary: "#9d174d", Accent: "#ec4899"}},
	{name: "gold", words: []string{"gold", "golden", "yellow", "mustard"},
		palette: ColorScheme{Primary: "#ca8a04", Secondary: "#854d0e", Accent: "#eab308"}},
}

var (
	hexColorPattern = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
	wordPattern     = regexp.MustCompile(`[a-z]+`)
)

// ExtractColorScheme derives a palette from free text. Explicit hex codes win,
// then the earliest color-family keyword, then the default palette.
// With fewer than three hex codes the last one found fills the rest.
func ExtractColorScheme(text string) ColorScheme {
	if hexes := hexColorPattern.FindAllString(text, 3); len(hexes) > 0 {
		for i := range hexes {
			hexes[i] = strings.ToLower(hexes[i])
		}
		for len(hexes) < 3 {
			hexes = append(hexes, hexes[len(hexes)-1])
		}
		return ColorScheme{Primary: hexes[0], Secondary: hexes[1], Accent: hexes[2]}
	}

	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		for _, family := range colorFamilies {
			for _, w := range family.words {
				if word == w {
					return family.palette
				}
			}
		}
	}
	return DefaultColorScheme
}

// Values returns the palette as custom values
func (c ColorScheme) Values() map[string]string {
	return map[string]string{
		"brand_primary_color":   c.Primary,
		"brand_secondary_color": c.Secondary,
		"brand_accent_color":    c.Accent,
	}
}

var brandColorSources = []string{"brandColors", "colors", "colorScheme", "colorPalette", "brand_colors"}

// MapBranding maps the branding section to the brand color keys. Nothing is
// emitted when the section carries no color input.
func MapBranding(content map[string]any) Result {
	r := newResult()
	if len(content) == 0 {
		return r
	}

	for _, src := range brandColorSources {
		raw, found := vault.Lookup(content, src)
		if !found || raw == nil {
			continue
		}
		if obj, ok := raw.(map[string]any); ok {
			scheme := ExtractColorScheme(strings.Join([]string{
				vault.LookupString(obj, "primary"),
				vault.LookupString(obj, "secondary"),
				vault.LookupString(obj, "accent"),
			}, " "))
			for k, v := range scheme.Values() {
				r.set(k, v)
			}
			return r
		}
		text := strings.TrimSpace(vault.Stringify(raw))
		if text == "" {
			continue
		}
		for k, v := range ExtractColorScheme(text).Values() {
			r.set(k, v)
		}
		return r
	}
	return r
}

// imageAliases maps image type fragments to semantic keys
var imageAliases = []struct {
	match []string
	key   string
}{
	{match: []string{"hero", "mockup"}, key: "optin_mockup_image"},
	{match: []string{"thankyou", "thank_you"}, key: "thankyou_page_image"},
	{match: []string{"vsl", "video"}, key: "vsl_page_image"},
	{match: []string{"testimonial"}, key: "testimonial_image"},
}

type imageRecord struct {
	Type string
	URL  string
}

// MapImages flattens image records into {type}_image_url keys plus semantic
// aliases. The first record matching an alias claims it.
func MapImages(content map[string]any) Result {
	r := newResult()
	if len(content) == 0 {
		return r
	}

	for _, img := range collectImages(&r, content) {
		typ := normalizeImageType(img.Type)
		if typ == "" || img.URL == "" {
			continue
		}
		r.setIfPresent(typ+"_image_url", img.URL)
		for _, alias := range imageAliases {
			if _, taken := r.Values[alias.key]; taken {
				continue
			}
			for _, m := range alias.match {
				if strings.Contains(typ, m) {
					r.set(alias.key, img.URL)
					break
				}
			}
		}
	}
	return r
}

// collectImages accepts either a list of {image_type, url} records (under
// "images" or "generatedImages") or a map keyed by image type.
func collectImages(r *Result, content map[string]any) []imageRecord {
	var records []imageRecord
	for _, listKey := range []string{"images", "generatedImages"} {
		raw, found := vault.Lookup(content, listKey)
		if !found {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			r.warn(vault.SectionImages, listKey, WarnMalformed, "expected a list of image records, got %T", raw)
			continue
		}
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			records = append(records, imageRecord{
				Type: firstString(obj, "image_type", "type"),
				URL:  firstString(obj, "url", "image_url", "src"),
			})
		}
	}
	if len(records) > 0 {
		return records
	}

	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := content[k].(type) {
		case string:
			if strings.HasPrefix(strings.TrimSpace(v), "http") {
				records = append(records, imageRecord{Type: k, URL: strings.TrimSpace(v)})
			}
		case map[string]any:
			typ := firstString(v, "image_type", "type")
			if typ == "" {
				typ = k
			}
			records = append(records, imageRecord{Type: typ, URL: firstString(v, "url", "image_url", "src")})
		}
	}
	return records
}

func normalizeImageType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.TrimSuffix(t, "_image")
	return strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}
