// Package testdata generates realistic funnel content for tests and local seeding.
package testdata

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/funnelsync/pkg/mapping"
	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// ContentGeneratorConfig configures funnel content generation
type ContentGeneratorConfig struct {
	Seed int64
	// EmailSlots and SMSSlots are the number of optin slots to fill, 0-19
	EmailSlots int
	SMSSlots   int
	// LongSMS makes every SMS longer than one segment
	LongSMS    bool
	Reminders  bool
	FunnelCopy bool
	// BrandColors is the branding free text; random hex codes when empty
	BrandColors string
	// MarkdownBodies writes email bodies as markdown instead of HTML
	MarkdownBodies  bool
	FreeGiftEmail   bool
	ImagesPerFunnel int
}

// DefaultContentConfig fills everything
func DefaultContentConfig() ContentGeneratorConfig {
	return ContentGeneratorConfig{
		Seed:            42,
		EmailSlots:      len(mapping.Slots),
		SMSSlots:        len(mapping.Slots),
		Reminders:       true,
		FunnelCopy:      true,
		MarkdownBodies:  true,
		FreeGiftEmail:   true,
		ImagesPerFunnel: 3,
	}
}

// ContentGenerator produces section content from a seeded faker
type ContentGenerator struct {
	cfg   ContentGeneratorConfig
	faker *gofakeit.Faker
}

// NewContentGenerator creates a generator. The same config always yields the same content.
func NewContentGenerator(cfg ContentGeneratorConfig) *ContentGenerator {
	if cfg.EmailSlots > len(mapping.Slots) {
		cfg.EmailSlots = len(mapping.Slots)
	}
	if cfg.SMSSlots > len(mapping.Slots) {
		cfg.SMSSlots = len(mapping.Slots)
	}
	return &ContentGenerator{cfg: cfg, faker: gofakeit.New(cfg.Seed)}
}

// Content generates merged content keyed by section id
func (g *ContentGenerator) Content() map[string]map[string]any {
	company := g.faker.Company()

	content := map[string]map[string]any{
		vault.SectionBusiness: {
			"companyName": company,
		},
		vault.SectionMessage: {
			"coreMessage":     g.faker.HipsterSentence(8),
			"uniqueMechanism": g.faker.HipsterSentence(10),
		},
		vault.SectionOffer: {
			"name":      g.faker.BuzzWord() + " Accelerator",
			"price":     fmt.Sprintf("$%.0f", g.faker.Price(497, 4997)),
			"guarantee": "30-day money back guarantee",
			"cta":       "Get Instant Access",
		},
		vault.SectionBranding: {
			"brandColors": g.brandColors(),
		},
	}

	if g.cfg.EmailSlots > 0 || g.cfg.FreeGiftEmail {
		content[vault.SectionEmails] = g.emails()
	}
	if g.cfg.SMSSlots > 0 {
		content[vault.SectionSMS] = g.sms()
	}
	if g.cfg.Reminders {
		content[vault.SectionAppointmentReminders] = g.reminders()
	}
	if g.cfg.FunnelCopy {
		content[vault.SectionFunnelCopy] = g.funnelCopy(company)
	}
	if g.cfg.ImagesPerFunnel > 0 {
		content[vault.SectionImages] = g.images()
	}
	return content
}

// Sections wraps Content as stored sections of funnelID
func (g *ContentGenerator) Sections(funnelID string) []vault.Section {
	content := g.Content()
	out := make([]vault.Section, 0, len(content))
	for _, id := range vault.SectionIDs(content) {
		out = append(out, vault.Section{FunnelID: funnelID, SectionID: id, Content: content[id]})
	}
	return out
}

func (g *ContentGenerator) brandColors() string {
	if g.cfg.BrandColors != "" {
		return g.cfg.BrandColors
	}
	return strings.Join([]string{g.faker.HexColor(), g.faker.HexColor(), g.faker.HexColor()}, ", ")
}

func (g *ContentGenerator) emails() map[string]any {
	out := make(map[string]any)
	for _, slot := range mapping.Slots[:g.cfg.EmailSlots] {
		out["email"+slot.Suffix] = g.email()
	}
	if g.cfg.FreeGiftEmail {
		out["freeGiftEmail"] = g.email()
	}
	return out
}

func (g *ContentGenerator) email() map[string]any {
	return map[string]any{
		"subject": g.faker.HipsterSentence(6),
		"preview": g.faker.HipsterSentence(9),
		"body":    g.body(),
	}
}

func (g *ContentGenerator) body() string {
	if g.cfg.MarkdownBodies {
		return fmt.Sprintf("Hi {{contact.first_name}},\n\n**%s**\n\n%s\n\n- %s\n- %s",
			g.faker.HipsterSentence(5),
			g.faker.Paragraph(1, 3, 12, " "),
			g.faker.HipsterSentence(4),
			g.faker.HipsterSentence(4))
	}
	return fmt.Sprintf("<p>Hi {{contact.first_name}},</p><p>%s</p>", g.faker.Paragraph(1, 3, 12, " "))
}

func (g *ContentGenerator) smsText() string {
	if g.cfg.LongSMS {
		return g.faker.Paragraph(1, 6, 12, " ")
	}
	return g.faker.HipsterSentence(10)
}

func (g *ContentGenerator) sms() map[string]any {
	out := make(map[string]any)
	for _, slot := range mapping.Slots[:g.cfg.SMSSlots] {
		out["sms"+slot.Suffix] = map[string]any{"message": g.smsText()}
	}
	return out
}

func (g *ContentGenerator) reminders() map[string]any {
	steps := []string{"whenBooked", "reminder48h", "reminder24h", "reminder1h", "reminder10min", "atCallTime"}
	out := make(map[string]any, len(steps))
	for _, step := range steps {
		out[step] = map[string]any{
			"email": g.email(),
			"sms":   g.smsText(),
		}
	}
	return out
}

func (g *ContentGenerator) funnelCopy(company string) map[string]any {
	faq := make([]any, 0, 3)
	for i := 0; i < 3; i++ {
		faq = append(faq, map[string]any{
			"question": g.faker.Question(),
			"answer":   g.faker.HipsterSentence(12),
		})
	}
	testimonials := make([]any, 0, 2)
	for i := 0; i < 2; i++ {
		testimonials = append(testimonials, map[string]any{
			"name":  g.faker.Name(),
			"quote": g.faker.HipsterSentence(14),
		})
	}

	return map[string]any{
		"optinPage": map[string]any{
			"headline_text":       g.faker.HipsterSentence(7),
			"subheadline_text":    g.faker.HipsterSentence(12),
			"cta_button_text":     "Get Instant Access",
			"logo_image":          g.faker.URL() + "/logo.png",
			"footer_company_name": company,
			"bullets":             []any{g.faker.HipsterSentence(5), g.faker.HipsterSentence(5), g.faker.HipsterSentence(5)},
		},
		"salesPage": map[string]any{
			"headline_text":   g.faker.HipsterSentence(8),
			"cta_button_text": "Book Your Call",
			"benefits":        []any{g.faker.HipsterSentence(6), g.faker.HipsterSentence(6)},
			"testimonials":    testimonials,
			"faq":             faq,
		},
		"bookingPage": map[string]any{
			"headline_text": "Book Your Free Strategy Call",
			"expectations":  []any{g.faker.HipsterSentence(6), g.faker.HipsterSentence(6)},
		},
		"thankYouPage": map[string]any{
			"headline_text": "You're Booked!",
			"next_steps":    []any{g.faker.HipsterSentence(6)},
		},
	}
}

func (g *ContentGenerator) images() map[string]any {
	types := []string{"hero", "thankyou", "vsl", "testimonial", "logo"}
	n := g.cfg.ImagesPerFunnel
	if n > len(types) {
		n = len(types)
	}
	list := make([]any, 0, n)
	for _, typ := range types[:n] {
		list = append(list, map[string]any{
			"image_type": typ,
			"url":        fmt.Sprintf("%s/%s-%s.png", g.faker.URL(), typ, g.faker.UUID()),
		})
	}
	return map[string]any{"images": list}
}
