package customvalues

import (
	"strings"

	"github.com/jordanlanch/funnelsync/pkg/mapping"
	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// Rule fills one key when no mapper produced it. Sources are "section.path"
// references tried in order; Default is used only when every source is empty.
type Rule struct {
	Key      string
	Sources  []string
	Default  string
	Critical bool
}

// MasterKeys is the list of keys the inference pass guarantees or tries to fill.
var MasterKeys = []Rule{
	{
		Key:      "company_name",
		Sources:  []string{"business.companyName", "business.name", "funnelCopy.optinPage.footer_company_name", "idealClient.businessName"},
		Default:  "Our Company",
		Critical: true,
	},
	{
		Key:      "02_optin_headline_text",
		Sources:  []string{"funnelCopy.optinPage.headline_text", "message.headline", "message.coreMessage", "offer.headline"},
		Default:  "Get The Free Training",
		Critical: true,
	},
	{
		Key:     "02_optin_subheadline_text",
		Sources: []string{"message.subheadline", "message.uniqueMechanism", "offer.promise"},
	},
	{
		Key:      "02_optin_cta_button_text",
		Sources:  []string{"offer.cta", "offer.callToAction", "message.callToAction"},
		Default:  "Get Instant Access",
		Critical: true,
	},
	{
		Key:      "02_vsl_headline_text",
		Sources:  []string{"message.coreMessage", "offer.headline", "offer.promise"},
		Default:  "Watch The Video Below",
		Critical: true,
	},
	{
		Key:      "02_vsl_cta_button_text",
		Sources:  []string{"offer.bookingCta", "offer.cta"},
		Default:  "Book Your Call Now",
		Critical: true,
	},
	{
		Key:      "02_booking_headline_text",
		Sources:  []string{"offer.bookingHeadline"},
		Default:  "Book Your Free Strategy Call",
		Critical: true,
	},
	{
		Key:      "02_thankyou_headline_text",
		Sources:  []string{"offer.thankYouHeadline"},
		Default:  "You're All Set!",
		Critical: true,
	},
	{
		Key:     "offer_name",
		Sources: []string{"offer.name", "offer.title", "offer.offerName"},
	},
	{
		Key:     "offer_price",
		Sources: []string{"offer.price", "offer.pricing.price"},
	},
	{
		Key:     "offer_guarantee",
		Sources: []string{"offer.guarantee", "funnelCopy.salesPage.guarantee_text"},
	},
	{
		Key:     "ideal_client_description",
		Sources: []string{"idealClient.description", "idealClient.summary", "idealClient.bestIdealClient"},
	},
	{
		Key:     "ideal_client_pain_points",
		Sources: []string{"idealClient.painPoints", "idealClient.pains"},
	},
	{
		Key:     "core_message",
		Sources: []string{"message.coreMessage", "message.oneLiner"},
	},
	{
		Key:      "brand_primary_color",
		Default:  mapping.DefaultColorScheme.Primary,
		Critical: true,
	},
	{
		Key:      "brand_secondary_color",
		Default:  mapping.DefaultColorScheme.Secondary,
		Critical: true,
	},
	{
		Key:      "brand_accent_color",
		Default:  mapping.DefaultColorScheme.Accent,
		Critical: true,
	},
}

// resolveSource reads "section.path" from merged content
func resolveSource(content map[string]map[string]any, source string) string {
	sectionID, path, ok := strings.Cut(source, ".")
	if !ok {
		return ""
	}
	return vault.LookupString(content[sectionID], path)
}

// infer fills keys from rules that the mappers did not produce. It returns the
// keys it filled from a source and the critical keys it had to default.
func infer(values map[string]string, content map[string]map[string]any, rules []Rule) (inferred, defaulted []string) {
	for _, rule := range rules {
		if strings.TrimSpace(values[rule.Key]) != "" {
			continue
		}

		filled := false
		for _, src := range rule.Sources {
			if v := resolveSource(content, src); v != "" {
				values[rule.Key] = v
				inferred = append(inferred, rule.Key)
				filled = true
				break
			}
		}
		if filled {
			continue
		}

		if rule.Default != "" {
			values[rule.Key] = rule.Default
			if rule.Critical {
				defaulted = append(defaulted, rule.Key)
			} else {
				inferred = append(inferred, rule.Key)
			}
		}
	}
	return inferred, defaulted
}
