// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/iris/internal/ui/styles"
	"github.com/jeranaias/iris/internal/util"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is what the status bar reports about the model.
type Status int

const (
	StatusReady Status = iota
	StatusGenerating
	StatusUnavailable
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusGenerating:
		return "Generating..."
	case StatusUnavailable:
		return "Unavailable"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns the ASCII indicator for the status.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusGenerating:
		return styles.StatusIndicators.Active
	case StatusUnavailable:
		return styles.StatusIndicators.Warning
	default:
		return styles.StatusIndicators.Error
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is one key hint shown on the right of the bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line of the TUI.
type StatusBar struct {
	ModelName string
	Status    Status
	Width     int
	Shortcuts []Shortcut
	theme     *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetStatus updates the current status.
func (s *StatusBar) SetStatus(status Status) {
	s.Status = status
}

// View renders the status bar. Shortcuts are dropped from the right when
// the terminal is too narrow for them.
func (s *StatusBar) View() string {
	width := s.Width
	if width <= 0 {
		width = 80
	}

	left := s.statusStyle().Render(s.Status.Icon() + " " + s.Status.String())
	if s.ModelName != "" {
		left += s.theme.ShortcutDesc.Render("  " + s.ModelName)
	}

	// Two columns of padding from the bar style.
	room := width - 2 - lipgloss.Width(left) - 2
	var hints []string
	used := 0
	for _, sc := range s.Shortcuts {
		hint := s.theme.ShortcutKey.Render(sc.Key) + " " + s.theme.ShortcutDesc.Render(sc.Desc)
		w := lipgloss.Width(hint)
		if len(hints) > 0 {
			w += 2
		}
		if used+w > room {
			break
		}
		hints = append(hints, hint)
		used += w
	}
	right := strings.Join(hints, "  ")

	gap := width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	if lipgloss.Width(line) > width-2 {
		line = util.TruncateWidth(s.Status.String(), width-2)
	}
	return s.theme.StatusBar.Width(width).Render(line)
}

func (s *StatusBar) statusStyle() lipgloss.Style {
	switch s.Status {
	case StatusReady:
		return s.theme.SuccessStyle
	case StatusGenerating:
		return s.theme.StreamingLabel
	case StatusUnavailable:
		return s.theme.WarningStyle
	default:
		return s.theme.ErrorStyle
	}
}
