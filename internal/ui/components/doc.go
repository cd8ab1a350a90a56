// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable visual pieces of the iris TUI.
//
//   - Alert: a dismissible error box shown over the thread view
//   - StatusBar: the bottom line with model, status and key hints
package components
