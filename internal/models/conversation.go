// ABOUTME: Conversation holds the ordered user/assistant messages of one chat thread
// ABOUTME: Each turn appends exactly one user and one assistant message
package models

import "time"

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Citations  []Citation `json:"citations,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Conversation is a caller-identified chat thread
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastMessages returns up to n trailing messages
func (c *Conversation) LastMessages(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
