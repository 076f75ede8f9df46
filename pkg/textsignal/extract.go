// Package textsignal extracts structured lead signals from free-form
// customer text: contact details, urgency, service-area hints and
// handoff intent. All matching is case-insensitive and first-match-wins.
package textsignal

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pipeworks-za/backend/pkg/models"
)

var (
	phoneRe = regexp.MustCompile(`(\+?\d[\d\s\-\(\)]{8,}\d)`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	nameIntroRe = regexp.MustCompile(`(?i:my name is|i'm|i am|this is|it's|its|call me)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	nameHereRe  = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+(?i:here)`)

	scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
	jsSchemeRe  = regexp.MustCompile(`(?i)javascript:`)
	dataURIRe   = regexp.MustCompile(`(?i)data:`)

	titleCaser = cases.Title(language.English)
)

// urgencyRule maps a set of trigger phrases to an urgency tier.
// Rules are evaluated in order; the first phrase found in the text wins.
type urgencyRule struct {
	urgency models.Urgency
	phrases []string
}

var urgencyRules = []urgencyRule{
	{models.UrgencyEmergency, []string{
		"emergency", "burst", "flooding", "flood", "water everywhere", "urgent now", "asap",
	}},
	{models.UrgencyUrgent, []string{
		"urgent", "as soon as possible", "quickly", "soon", "rush",
	}},
	{models.UrgencyLow, []string{
		"eventually", "sometime", "when convenient", "not urgent",
	}},
}

// Cities we know we do not serve. Checked only after the text failed
// to mention the configured service area.
var outOfAreaCities = []string{
	"pretoria", "cape town", "durban", "bloemfontein", "port elizabeth", "east london",
}

// humanIntentRule is a conjunction of substrings plus optional alternatives.
// The text matches when every required substring is present and, if the
// rule lists alternatives, at least one of them too.
type humanIntentRule struct {
	required []string
	anyOf    []string
}

var humanIntentRules = []humanIntentRule{
	{required: []string{"connect"}, anyOf: []string{"person", "perso", "human"}},
	{required: []string{"speak to someone"}},
	{required: []string{"talk to"}, anyOf: []string{"human", "person", "someone"}},
	{required: []string{"human agent"}},
	{required: []string{"real person"}},
	{required: []string{"customer"}, anyOf: []string{"service", "support"}},
	{required: []string{"speak with"}, anyOf: []string{"someone", "person"}},
}

// ExtractPhone returns the first phone-like digit run found in the text,
// or "" when none is present.
func ExtractPhone(text string) string {
	return strings.TrimSpace(phoneRe.FindString(text))
}

// ExtractEmail returns the first email address found in the text
// lower-cased, or "" when none is present.
func ExtractEmail(text string) string {
	return strings.ToLower(emailRe.FindString(text))
}

// ExtractName looks for a self-introduction ("my name is Peter",
// "John here") and returns the title-cased name, or "" when none matched.
func ExtractName(text string) string {
	if m := nameIntroRe.FindStringSubmatch(text); len(m) > 1 {
		return titleCaser.String(strings.ToLower(m[1]))
	}
	if m := nameHereRe.FindStringSubmatch(strings.TrimSpace(text)); len(m) > 1 {
		return titleCaser.String(strings.ToLower(m[1]))
	}
	return ""
}

// DetectUrgency classifies the text into an urgency tier. Unmatched text
// is NORMAL.
func DetectUrgency(text string) models.Urgency {
	lower := strings.ToLower(text)
	for _, rule := range urgencyRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				return rule.urgency
			}
		}
	}
	return models.UrgencyNormal
}

// IsOutOfServiceArea reports whether the text names a location we do not
// serve. Mentioning the service area itself always wins; ambiguous text
// is treated as in-area.
func IsOutOfServiceArea(text, serviceArea string) bool {
	lower := strings.ToLower(text)
	if serviceArea != "" && strings.Contains(lower, strings.ToLower(serviceArea)) {
		return false
	}
	for _, city := range outOfAreaCities {
		if strings.Contains(lower, city) {
			return true
		}
	}
	return false
}

// WantsHuman reports whether the text asks to be handed to a person
// instead of the assistant.
func WantsHuman(text string) bool {
	lower := strings.ToLower(text)
	for _, rule := range humanIntentRules {
		if matchesIntent(lower, rule) {
			return true
		}
	}
	return false
}

func matchesIntent(lower string, rule humanIntentRule) bool {
	for _, req := range rule.required {
		if !strings.Contains(lower, req) {
			return false
		}
	}
	if len(rule.anyOf) == 0 {
		return true
	}
	for _, alt := range rule.anyOf {
		if strings.Contains(lower, alt) {
			return true
		}
	}
	return false
}

// SanitizeText strips script blocks, residual markup, dangerous URI
// schemes and null bytes from user-supplied text.
func SanitizeText(text string) string {
	out := scriptTagRe.ReplaceAllString(text, "")
	out = htmlTagRe.ReplaceAllString(out, "")
	out = jsSchemeRe.ReplaceAllString(out, "")
	out = dataURIRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "\x00", "")
	return strings.TrimSpace(out)
}
