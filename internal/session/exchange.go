// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	"github.com/jeranaias/iris/internal/model"
)

// Exchange is one in-flight send: a prompt on its way to becoming an
// assistant message. It is registered with the Manager from Submit until its
// outcome is settled, including while a completed reply is being saved.
type Exchange struct {
	ConversationID string
	Prompt         string
	UserMessage    *model.Message

	// Guarded by Manager.mu.
	status  Status
	buffer  string
	conv    *model.Conversation
	outcome Outcome

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the exchange has reached its outcome.
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the exchange ends or ctx is done.
func (e *Exchange) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-e.done:
		// outcome is written before done is closed and never again.
		return e.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
