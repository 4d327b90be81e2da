package types

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn kept as memory for follow-up questions.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
