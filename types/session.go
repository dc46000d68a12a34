package types

import "time"

// Session is a bounded, ordered conversation history for one user.
// The message sequence is append-only except for compression, which
// replaces a contiguous oldest prefix with a single summary message.
// Sessions are mutated only by the memory manager; archival and export
// are handled by a persistence collaborator, and sessions are never
// deleted implicitly.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Messages     []Message `json:"messages"`
	Topic        string    `json:"topic,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	// Compressions counts the compression passes applied to the session.
	Compressions int `json:"compressions,omitempty"`
}

// SummaryCount returns the number of compressed summary segments
// currently present in the message sequence.
func (s *Session) SummaryCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.IsSummary() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the session. Callers receive clones so
// the manager's internal state cannot be mutated from outside.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return &out
}
