// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/jeranaias/iris/internal/ui/components"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of both screens.
type KeyMap struct {
	// Conversation list
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	New    key.Binding
	Delete key.Binding
	Yes    key.Binding
	No     key.Binding

	// Thread view
	Send     key.Binding
	Newline  key.Binding
	Back     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Retry    key.Binding

	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "move down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		Yes: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "keep"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send/stop"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "newline"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// listShortcuts returns the hints shown under the conversation list.
func (k KeyMap) listShortcuts() []components.Shortcut {
	return shortcuts(k.Open, k.New, k.Delete, k.Quit)
}

// threadShortcuts returns the hints shown under the thread view.
func (k KeyMap) threadShortcuts() []components.Shortcut {
	return shortcuts(k.Send, k.Newline, k.Back, k.Quit)
}

// unavailableShortcuts returns the hints shown with the unavailable view.
func (k KeyMap) unavailableShortcuts() []components.Shortcut {
	return shortcuts(k.Retry, k.Back, k.Quit)
}

func shortcuts(bindings ...key.Binding) []components.Shortcut {
	out := make([]components.Shortcut, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return out
}
