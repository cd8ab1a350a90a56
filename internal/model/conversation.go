// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

const (
	// DefaultTitle is the title of a conversation that has no messages yet.
	DefaultTitle = "New Conversation"

	// MaxTitleLength is the number of display characters kept from the first prompt.
	MaxTitleLength = 50

	// TitleEllipsis is appended to titles that were truncated.
	TitleEllipsis = "..."
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a titled, ordered collection of messages. It exclusively owns
// its messages: deleting a conversation deletes them too.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages in insertion order, which is also chronological order.
	Messages []*Message `json:"messages"`
}

// NewConversation creates a new empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the end of the conversation and refreshes UpdatedAt.
func (c *Conversation) Append(msg *Message) {
	msg.ConversationID = c.ID
	c.Messages = append(c.Messages, msg)
	c.Touch(msg.Timestamp)
}

// Touch moves UpdatedAt forward to t. UpdatedAt never moves backwards.
func (c *Conversation) Touch(t time.Time) {
	if t.After(c.UpdatedAt) {
		c.UpdatedAt = t
	}
}

// UpdateTitle sets the title from the first message of the conversation.
func (c *Conversation) UpdateTitle(firstMessage string) {
	c.Title = DeriveTitle(firstMessage)
	c.Touch(time.Now())
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Clone returns a deep copy that callers may read without holding any lock.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		out.Messages[i] = msg.Clone()
	}
	return &out
}

// =============================================================================
// TITLES
// =============================================================================

// Titles are single-line.
var titleNewlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", "")

// DeriveTitle builds a conversation title from a prompt: the first
// MaxTitleLength display characters, followed by TitleEllipsis if anything was cut.
// Characters are grapheme clusters, so emoji and combining marks count once.
func DeriveTitle(prompt string) string {
	prompt = strings.TrimSpace(titleNewlines.Replace(prompt))
	if prompt == "" {
		return DefaultTitle
	}

	var sb strings.Builder
	count := 0
	g := uniseg.NewGraphemes(prompt)
	for g.Next() {
		if count == MaxTitleLength {
			return sb.String() + TitleEllipsis
		}
		sb.WriteString(g.Str())
		count++
	}
	return sb.String()
}
