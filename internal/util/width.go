// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by iris packages.
package util

import "github.com/mattn/go-runewidth"

// TruncateWidth fits s into maxWidth terminal columns, ending with "..." when
// it had to cut. Wide (CJK, emoji) characters count as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadWidth right-pads s with spaces to width terminal columns.
func PadWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}
