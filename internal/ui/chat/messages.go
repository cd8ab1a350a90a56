// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/session"
	"github.com/jeranaias/iris/internal/storage"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// SessionUpdateMsg carries one update published by the session manager.
type SessionUpdateMsg struct {
	Update session.Update
}

// SubscriptionClosedMsg is sent once the update channel has closed.
type SubscriptionClosedMsg struct{}

// AvailabilityMsg carries the result of a re-check requested by the user.
type AvailabilityMsg struct {
	Availability gateway.Availability
}

// SubmitResultMsg reports the outcome of Submit. Exchange is set whenever
// the prompt was accepted, even if saving it failed.
type SubmitResultMsg struct {
	ConversationID string
	Exchange       *session.Exchange
	Err            error
}

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// ConversationsLoadedMsg carries the conversation list.
type ConversationsLoadedMsg struct {
	Conversations []storage.ConversationMeta
	Err           error
}

// ConversationOpenedMsg carries a conversation to show in the thread view.
type ConversationOpenedMsg struct {
	Conversation *model.Conversation
	Err          error
}

// ConversationDeletedMsg reports a finished delete.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// =============================================================================
// RENDER MESSAGES
// =============================================================================

// conversationRefreshedMsg carries a reloaded copy of the open conversation.
type conversationRefreshedMsg struct {
	conv *model.Conversation
	err  error
}

// renderTickMsg asks for a deferred re-render of the streaming bubble.
type renderTickMsg struct{}
