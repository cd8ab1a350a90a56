// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the bubbletea TUI of iris.
//
// The TUI has two screens. The conversation list shows saved conversations,
// most recent first. The thread view shows one conversation with an input
// box; while the model streams, the reply grows in a "Generating..." bubble.
//
// The Model never talks to the language model directly. It calls the
// session manager and renders the updates the manager publishes:
//
//	updates, stop := sessions.Subscribe()
//	// waitForUpdate(updates) turns each session.Update into a tea.Msg
//
// When the model is unavailable the thread view is replaced by an
// explanation of why, and r re-checks availability.
package chat
