// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message. It is fixed when the message is created.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts a stored role string back into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
}

// NewMessage creates a new message with a generated ID and the current time.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message with finalized content.
func NewAssistantMessage(content string) *Message {
	return NewMessage(RoleAssistant, content)
}

// IsUser returns true if the message was written by the user.
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant returns true if the message was written by the assistant.
func (m *Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// FormatTime returns the message timestamp for display.
func (m *Message) FormatTime() string {
	return m.Timestamp.Format("15:04")
}

// Clone returns a copy of the message, or nil for a nil message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}
