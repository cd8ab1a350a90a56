// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/iris/internal/ui/styles"
)

// =============================================================================
// ALERT
// =============================================================================

// Alert is a styled, dismissible error message.
type Alert struct {
	title   string
	message string
	visible bool
	width   int
	theme   *styles.Theme
}

// NewAlert creates a hidden alert.
func NewAlert(theme *styles.Theme) Alert {
	return Alert{title: "Error", theme: theme}
}

// Show displays message under title.
func (a *Alert) Show(title, message string) {
	if title == "" {
		title = "Error"
	}
	a.title = title
	a.message = message
	a.visible = true
}

// Hide hides the alert.
func (a *Alert) Hide() {
	a.visible = false
}

// IsVisible returns whether the alert is shown.
func (a Alert) IsVisible() bool {
	return a.visible
}

// Title returns the alert title.
func (a Alert) Title() string {
	return a.title
}

// Message returns the alert text.
func (a Alert) Message() string {
	return a.message
}

// SetWidth sets the width the alert may use.
func (a *Alert) SetWidth(width int) {
	a.width = width
}

// Update hides the alert on esc, enter or q.
func (a Alert) Update(msg tea.Msg) (Alert, tea.Cmd) {
	if !a.visible {
		return a, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "enter", "q":
			a.Hide()
		}
	}
	return a, nil
}

// View renders the alert box, or "" when hidden.
func (a Alert) View() string {
	if !a.visible {
		return ""
	}
	width := a.width
	if width <= 0 {
		width = 60
	}
	maxWidth := width - 8
	if maxWidth < 30 {
		maxWidth = 30
	}
	if maxWidth > 80 {
		maxWidth = 80
	}

	var parts []string
	parts = append(parts, a.theme.ErrorTitle.Render(styles.StatusIndicators.Error+" "+a.title))
	if a.message != "" {
		parts = append(parts, "")
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.TextPrimary).
			Width(maxWidth-4).
			Render(a.message))
	}
	parts = append(parts, "")
	parts = append(parts, a.theme.ShortcutDesc.Render("Press Enter or Esc to dismiss"))

	return a.theme.ErrorBox.Width(maxWidth).Render(strings.Join(parts, "\n"))
}
