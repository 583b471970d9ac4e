package domain

// Conversation roles.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message of the chat history sent by the client.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsHuman reports whether the turn was written by the user.
func (t ConversationTurn) IsHuman() bool {
	return t.Role == RoleHuman || t.Role == "user"
}

// IsAssistant reports whether the turn was written by the assistant.
func (t ConversationTurn) IsAssistant() bool {
	return t.Role == RoleAssistant || t.Role == "ai"
}

// QAPair is a folded (question, answer) exchange.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Source identifies a file that contributed context to an answer.
type Source struct {
	File    string `json:"file"`
	Path    string `json:"path"`
	Preview string `json:"preview"`
}

// Answer is the result of a codebase question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
