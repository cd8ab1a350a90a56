// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("abcdefghij", 8) // 80 characters

	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"short prompt", "Hello", "Hello"},
		{"exactly fifty", long[:50], long[:50]},
		{"fifty one", long[:51], long[:50] + "..."},
		{"eighty characters", long, long[:50] + "..."},
		{"newlines folded", "line one\nline two", "line one line two"},
		{"blank prompt", "   ", DefaultTitle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.prompt); got != tc.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tc.prompt, got, tc.want)
			}
		})
	}
}

func TestDeriveTitle_CountsGraphemes(t *testing.T) {
	// Each flag is two runes but one display character.
	prompt := strings.Repeat("🇯🇵", 50)
	if got := DeriveTitle(prompt); got != prompt {
		t.Errorf("DeriveTitle should keep 50 flags untruncated, got %d bytes", len(got))
	}

	prompt = strings.Repeat("é", 51)
	want := strings.Repeat("é", 50) + TitleEllipsis
	if got := DeriveTitle(prompt); got != want {
		t.Errorf("DeriveTitle(51 x é) = %q, want %q", got, want)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	conv := NewConversation()

	if conv.ID == "" {
		t.Error("ID should not be empty")
	}
	if conv.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", conv.Title, DefaultTitle)
	}
	if !conv.IsEmpty() {
		t.Error("new conversation should be empty")
	}
	if conv.CreatedAt.IsZero() || conv.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestConversation_Append(t *testing.T) {
	conv := NewConversation()
	before := conv.UpdatedAt

	msg := NewUserMessage("Hello")
	msg.Timestamp = before.Add(time.Second)
	conv.Append(msg)

	if conv.MessageCount() != 1 {
		t.Fatalf("MessageCount = %d, want 1", conv.MessageCount())
	}
	if msg.ConversationID != conv.ID {
		t.Errorf("ConversationID = %q, want %q", msg.ConversationID, conv.ID)
	}
	if !conv.UpdatedAt.Equal(msg.Timestamp) {
		t.Errorf("UpdatedAt = %v, want %v", conv.UpdatedAt, msg.Timestamp)
	}
	if conv.LastMessage() != msg {
		t.Error("LastMessage should return the appended message")
	}
}

func TestConversation_TouchIsMonotonic(t *testing.T) {
	conv := NewConversation()
	now := conv.UpdatedAt

	conv.Touch(now.Add(-time.Hour))
	if !conv.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt moved backwards: %v -> %v", now, conv.UpdatedAt)
	}

	later := now.Add(time.Minute)
	conv.Touch(later)
	if !conv.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", conv.UpdatedAt, later)
	}
}

func TestConversation_Clone(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("Hello"))

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Append(NewAssistantMessage("Hi"))

	if conv.Messages[0].Content != "Hello" {
		t.Error("Clone should not share messages with the original")
	}
	if conv.MessageCount() != 1 {
		t.Errorf("original MessageCount = %d, want 1", conv.MessageCount())
	}
}

func TestMessage_Clone(t *testing.T) {
	msg := NewUserMessage("Hello")
	clone := msg.Clone()
	clone.Content = "changed"
	clone.ConversationID = "other"

	if msg.Content != "Hello" || msg.ConversationID != "" {
		t.Errorf("original changed through clone: %+v", msg)
	}
	if clone.ID != msg.ID {
		t.Errorf("clone ID = %q, want %q", clone.ID, msg.ID)
	}

	var none *Message
	if none.Clone() != nil {
		t.Error("Clone of nil message should be nil")
	}
}

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestParseRole(t *testing.T) {
	for _, s := range []string{"user", "assistant"} {
		r, err := ParseRole(s)
		if err != nil {
			t.Errorf("ParseRole(%q) error: %v", s, err)
		}
		if r.String() != s {
			t.Errorf("ParseRole(%q) = %q", s, r)
		}
	}

	if _, err := ParseRole("system"); err == nil {
		t.Error("ParseRole(system) should fail")
	}
}

func TestRole_DisplayName(t *testing.T) {
	if RoleUser.DisplayName() != "You" {
		t.Errorf("RoleUser.DisplayName() = %q, want You", RoleUser.DisplayName())
	}
	if RoleAssistant.DisplayName() != "Assistant" {
		t.Errorf("RoleAssistant.DisplayName() = %q, want Assistant", RoleAssistant.DisplayName())
	}
}
