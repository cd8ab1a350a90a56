// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the iris TUI and CLI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Purple - Primary accent for assistant messages and selections
  - Cyan - Brand color for user highlights and shortcuts
  - Emerald - Success states and an available model
  - Amber - Warnings and the unavailable-model view
  - Rose - Errors and failed exchanges

# Theme (theme.go)

NewTheme builds every lipgloss style used by the chat views. The mode is
"auto", "dark" or "light"; auto uses termenv to query the terminal
background, and GlamourStyle picks the matching markdown style.

	theme := styles.NewTheme(cfg.UI.Theme)
	fmt.Println(theme.ErrorStyle.Render("failed"))
*/
package styles
