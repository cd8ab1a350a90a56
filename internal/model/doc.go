// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: a titled, timestamped, ordered collection of messages
//   - Message: a single turn with a fixed role and immutable content
//   - Role: user or assistant
//
// # Usage
//
//	conv := model.NewConversation()
//	msg := model.NewUserMessage("Hello!")
//	conv.Append(msg)
//	if conv.MessageCount() == 1 {
//	    conv.UpdateTitle(msg.Content)
//	}
package model
