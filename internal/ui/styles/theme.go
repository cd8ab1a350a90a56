// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	// ==========================================================================
	// CONVERSATION LIST
	// ==========================================================================

	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListMeta         lipgloss.Style
	EmptyState       lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	StreamingLabel  lipgloss.Style
	Timestamp       lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS BAR
	// ==========================================================================

	InputContainer lipgloss.Style
	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style

	// ==========================================================================
	// ALERTS
	// ==========================================================================

	ErrorBox         lipgloss.Style
	ErrorTitle       lipgloss.Style
	UnavailableBox   lipgloss.Style
	UnavailableTitle lipgloss.Style

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light"). Auto asks
// the terminal for its background color.
func NewTheme(mode string) *Theme {
	t := &Theme{
		IsDark:       resolveDark(mode),
		ColorProfile: termenv.ColorProfile(),
	}
	lipgloss.SetHasDarkBackground(t.IsDark)
	t.initStyles()
	return t
}

func resolveDark(mode string) bool {
	switch strings.ToLower(mode) {
	case ModeDark:
		return true
	case ModeLight:
		return false
	default:
		return termenv.HasDarkBackground()
	}
}

// GlamourStyle returns the glamour style name matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return styles.DarkStyle
	}
	return styles.LightStyle
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	// Conversation list
	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true).
		PaddingLeft(2)

	t.ListMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.EmptyState = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true).
		Align(lipgloss.Center)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1).
		MarginRight(4)

	t.StreamingLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Italic(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Alerts
	t.ErrorBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)

	t.ErrorTitle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.UnavailableBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(1, 3).
		Align(lipgloss.Center)

	t.UnavailableTitle = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.SuccessStyle = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.WarningStyle = lipgloss.NewStyle().
		Foreground(Amber)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// BubbleWidth returns the width available to a message bubble.
func (t *Theme) BubbleWidth() int {
	w := t.Width - 8
	if w < 20 {
		return 20
	}
	if w > 100 {
		return 100
	}
	return w
}
