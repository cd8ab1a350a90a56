// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/session"
	"github.com/jeranaias/iris/internal/storage"
)

// storeTimeout bounds list, open and delete calls made from the UI.
const storeTimeout = 10 * time.Second

// Sessions is the part of the session manager the TUI uses.
type Sessions interface {
	Submit(ctx context.Context, conversationID, prompt string) (*session.Exchange, error)
	Cancel(conversationID string)
	State(conversationID string) session.Snapshot
	Subscribe() (<-chan session.Update, func())
	CheckAvailability(ctx context.Context) gateway.Availability
	Availability() gateway.Availability
	NewConversation(ctx context.Context) (*model.Conversation, error)
	Conversation(ctx context.Context, id string) (*model.Conversation, error)
	Conversations(ctx context.Context) ([]storage.ConversationMeta, error)
	DeleteConversation(ctx context.Context, id string) error
}

// =============================================================================
// UPDATE BRIDGE
// =============================================================================

// waitForUpdate blocks until the manager publishes the next update. The
// Model re-issues it after each SessionUpdateMsg, so updates arrive in order.
func waitForUpdate(updates <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return SubscriptionClosedMsg{}
		}
		return SessionUpdateMsg{Update: u}
	}
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func loadConversationsCmd(s Sessions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		metas, err := s.Conversations(ctx)
		return ConversationsLoadedMsg{Conversations: metas, Err: err}
	}
}

func openConversationCmd(s Sessions, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		conv, err := s.Conversation(ctx, id)
		return ConversationOpenedMsg{Conversation: conv, Err: err}
	}
}

func newConversationCmd(s Sessions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		conv, err := s.NewConversation(ctx)
		return ConversationOpenedMsg{Conversation: conv, Err: err}
	}
}

func deleteConversationCmd(s Sessions, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return ConversationDeletedMsg{ID: id, Err: s.DeleteConversation(ctx, id)}
	}
}

// submitCmd saves the prompt and starts the exchange. The reply itself
// arrives as SessionUpdateMsgs.
func submitCmd(s Sessions, convID, prompt string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		ex, err := s.Submit(ctx, convID, prompt)
		return SubmitResultMsg{ConversationID: convID, Exchange: ex, Err: err}
	}
}

func checkAvailabilityCmd(s Sessions, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return AvailabilityMsg{Availability: s.CheckAvailability(ctx)}
	}
}

func refreshConversationCmd(s Sessions, id string) tea.Cmd {
	return func() tea.Msg {
		msg := openConversationCmd(s, id)().(ConversationOpenedMsg)
		return conversationRefreshedMsg{conv: msg.Conversation, err: msg.Err}
	}
}
