package textsignal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipeworks-za/backend/pkg/models"
)

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"plain local number", "call me on 0821234567 please", "0821234567"},
		{"international format", "my number is +27 82 123 4567", "+27 82 123 4567"},
		{"with dashes", "reach me at 011-234-5678", "011-234-5678"},
		{"no phone", "my geyser is leaking", ""},
		{"too short", "I live at 42 Oak street", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractPhone(tt.text))
		})
	}
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"plain email", "mail me at piet@example.co.za thanks", "piet@example.co.za"},
		{"with plus tag", "use anna+quotes@gmail.com", "anna+quotes@gmail.com"},
		{"mixed case lowered", "reach me at Piet.Botha@Example.CO.ZA", "piet.botha@example.co.za"},
		{"no email", "no email sorry", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractEmail(tt.text))
		})
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"my name is", "Hi, my name is Peter", "Peter"},
		{"i'm", "I'm Sarah Jones and my tap leaks", "Sarah Jones"},
		{"this is", "Hello this is Thabo", "Thabo"},
		{"name here", "Johan here, need a quote", "Johan"},
		{"no introduction", "the bathroom is flooding", ""},
		{"lowercase not matched", "my name is peter", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractName(tt.text))
		})
	}
}

func TestDetectUrgency(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected models.Urgency
	}{
		{"burst pipe", "A pipe BURST in the kitchen", models.UrgencyEmergency},
		{"flooding", "water everywhere, please help", models.UrgencyEmergency},
		{"asap", "need someone asap", models.UrgencyEmergency},
		{"urgent", "this is urgent", models.UrgencyUrgent},
		{"soon", "can you come soon", models.UrgencyUrgent},
		{"low", "no rush, sometime next month is fine", models.UrgencyLow},
		{"not urgent", "it's not urgent at all", models.UrgencyLow},
		{"default", "I need a quote for a new geyser", models.UrgencyNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectUrgency(tt.text))
		})
	}
}

func TestDetectUrgencyEmergencyBeatsLow(t *testing.T) {
	// A phrase from a higher tier must win even when a lower-tier
	// phrase also appears in the text.
	got := DetectUrgency("not urgent normally but the pipe burst")
	assert.Equal(t, models.UrgencyEmergency, got)
}

func TestIsOutOfServiceArea(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"pretoria", "I'm in Pretoria, can you come out?", true},
		{"cape town", "we're based in cape town", true},
		{"service area mentioned", "I'm in Johannesburg near Sandton", false},
		{"both mentioned", "moving from Pretoria to Johannesburg next week", false},
		{"no location", "my drain is blocked", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsOutOfServiceArea(tt.text, "Johannesburg"))
		})
	}
}

func TestWantsHuman(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"connect person", "can you connect me with a person", true},
		{"speak to someone", "I want to speak to someone", true},
		{"talk to human", "let me talk to a human", true},
		{"real person", "is there a real person there?", true},
		{"customer service", "I need customer service", true},
		{"speak with someone", "may I speak with someone", true},
		{"plain question", "how much does a geyser install cost", false},
		{"talk about", "I want to talk to you about my sink", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WantsHuman(tt.text))
		})
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"script tag", "<script>alert(1)</script>Hello", "Hello"},
		{"html tags", "<b>bold</b> pipe", "bold pipe"},
		{"javascript scheme", "click javascript:alert(1) now", "click alert(1) now"},
		{"null bytes", "hi\x00there", "hithere"},
		{"whitespace trimmed", "   hello   ", "hello"},
		{"clean text untouched", "my geyser leaks", "my geyser leaks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeText(tt.text))
		})
	}
}
