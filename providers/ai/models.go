package ai

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single entry in a chat conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ChatRequest carries one generation call to a provider.
type ChatRequest struct {
	Messages []Message

	// Model overrides the provider's default model when non-empty.
	Model string

	// Temperature controls sampling randomness. Nil means provider default.
	Temperature *float64

	// MaxTokens bounds the generated completion. Zero means provider default.
	MaxTokens int
}

// ChatResponse is the completed generation returned by a provider.
type ChatResponse struct {
	Content      string
	Model        string
	FinishReason string
}
