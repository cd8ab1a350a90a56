// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/model"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the state of a conversation's exchange.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusCompleted
	StatusFailed
	StatusCancelled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for completed, failed, and cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// =============================================================================
// UPDATES
// =============================================================================

// UpdateKind distinguishes the updates a subscriber receives.
type UpdateKind int

const (
	// UpdateStatus reports a status change of one conversation.
	UpdateStatus UpdateKind = iota

	// UpdatePartial carries a new snapshot of a streaming reply.
	UpdatePartial

	// UpdateAvailability reports the result of an availability check.
	UpdateAvailability
)

// Update is one event published by the Manager.
type Update struct {
	Kind           UpdateKind
	ConversationID string
	Status         Status

	// Content is the whole reply so far (UpdatePartial).
	Content string

	// Message is the persisted assistant message (StatusCompleted).
	Message *model.Message

	// Error is the user-facing failure text (StatusFailed).
	Error string

	// Availability is set for UpdateAvailability.
	Availability gateway.Availability
}

// Snapshot is the polled view of one conversation.
type Snapshot struct {
	Status  Status
	Content string

	// Error is the message of the most recent failure, kept until the next Submit.
	Error string
}

// Outcome is how an exchange ended.
type Outcome struct {
	Status Status

	// Message is the assistant reply, set when the model completed.
	Message *model.Message

	// Err is nil for completed and cancelled exchanges.
	Err error
}
