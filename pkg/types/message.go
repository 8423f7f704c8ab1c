package types

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // RoleUser marks a message written by the human user.
	RoleAssistant MessageRole = "assistant" // RoleAssistant marks a message produced by the system.
	RoleSystem    MessageRole = "system"    // RoleSystem marks instruction messages (never shown in transcripts).
)

// Message is one entry in a session transcript. Messages are immutable once
// appended; transcript order is append order and is the only timeline the
// intent router sees.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a message with a fresh id and the current time.
func NewMessage(role MessageRole, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}
