// Package llm is the text-completion layer behind the chat assistant.
// The assistant is treated as an opaque completer; everything the
// pipeline needs back is the reply text and the token/cost accounting.
package llm

// ChatMessage represents a chat message
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Completion is a completed assistant turn with usage accounting
type Completion struct {
	Message          string  `json:"message"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
	FinishReason     string  `json:"finish_reason"`
}

// gpt-4o-mini pricing per one million tokens
const (
	inputCostPerMillion  = 0.15
	outputCostPerMillion = 0.60
)

// EstimateCost converts a token split into dollars using the
// gpt-4o-mini price sheet
func EstimateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*inputCostPerMillion/1_000_000 +
		float64(completionTokens)*outputCostPerMillion/1_000_000
}

// CountTokens estimates the number of tokens in a text.
// This is a rough estimate, not exact.
func CountTokens(text string) int {
	// Rough estimate: ~4 characters per token
	return len(text) / 4
}
