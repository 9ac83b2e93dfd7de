// ABOUTME: ConversationState holds the ordered turns of one chat session
// ABOUTME: Append-only; readers always receive copies
package models

import (
	"strings"
	"time"
)

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single (role, text) entry in a conversation
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationState is the rewriting context for a single session
type ConversationState struct {
	SessionID string
	turns     []Turn
}

// NewConversationState creates an empty conversation for a session
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{SessionID: sessionID}
}

// Append adds a turn. Empty text is ignored.
func (c *ConversationState) Append(role, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	c.turns = append(c.turns, Turn{Role: role, Text: text, CreatedAt: time.Now().UTC()})
}

// Len returns the number of turns; nil states are empty
func (c *ConversationState) Len() int {
	if c == nil {
		return 0
	}
	return len(c.turns)
}

// Turns returns a copy of every turn in order
func (c *ConversationState) Turns() []Turn {
	if c == nil {
		return nil
	}
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Last returns a copy of the most recent n turns
func (c *ConversationState) Last(n int) []Turn {
	if c == nil || n <= 0 {
		return nil
	}
	start := len(c.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(c.turns)-start)
	copy(out, c.turns[start:])
	return out
}
