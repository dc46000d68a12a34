package types

import "time"

// AgentRequest is the inbound contract consumed from a transport
// collaborator (e.g. a chat bot).
type AgentRequest struct {
	UserMessage   string `json:"user_message"`
	UserID        string `json:"user_id"`
	SessionID     string `json:"session_id,omitempty"`
	ForceSkill    string `json:"force_skill,omitempty"`
	AllowChaining bool   `json:"allow_chaining"`
}

// AgentResponse is the structured result of one processed message.
type AgentResponse struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Content    string         `json:"content"`
	SkillsUsed []string       `json:"skills_used"`
	Duration   time.Duration  `json:"duration"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
