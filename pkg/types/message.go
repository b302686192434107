package types

// Message is a single turn in a language-model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage builds a system-role message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// NewUserMessage builds a user-role message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// GenerateOptions tunes a single model call.
type GenerateOptions struct {
	Temperature *float32
	MaxTokens   int
	JSONMode    bool
}
