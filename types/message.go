package types

import "time"

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSummary marks a synthetic message produced by a compression pass.
	// It stands in for the contiguous prefix of history it replaced.
	RoleSummary Role = "compressed_summary"
)

// Message represents a single conversation message. Messages are
// immutable once appended to a session; a compression pass is the only
// operation allowed to remove them.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Importance float64   `json:"importance,omitempty"`
	TokenCount int       `json:"token_count,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// IsSummary reports whether the message is a synthetic compression summary.
func (m Message) IsSummary() bool {
	return m.Role == RoleSummary
}
