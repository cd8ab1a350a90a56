// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session turns user prompts into persisted assistant replies.
//
// A Manager owns at most one Exchange per conversation. Each Exchange moves
// through idle -> streaming -> {completed | failed | cancelled} -> idle:
//
//   - Submit persists the user message (deriving the title for the first
//     one) and starts streaming from the gateway.
//   - Every snapshot replaces the partial content; nothing partial is saved.
//   - Completion appends and persists one assistant message.
//   - Failure and cancellation persist nothing. Cancel surfaces no error.
//
// Callers follow progress by polling State or by reading the ordered Update
// channel returned by Subscribe. Delivery never blocks the Manager: each
// subscriber has its own queue, and consecutive queued snapshots of the same
// conversation collapse into the latest one.
//
// # Usage
//
//	mgr := session.NewManager(ctx, store, gw, session.Config{Logger: log})
//	defer mgr.Close()
//
//	updates, unsubscribe := mgr.Subscribe()
//	defer unsubscribe()
//
//	ex, err := mgr.Submit(ctx, convID, "Hello")
//	if err != nil {
//	    return err
//	}
//	outcome, _ := ex.Wait(ctx)
package session
