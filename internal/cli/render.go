// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderer turns assistant replies into terminal output. Markdown is only
// rendered when the destination is a terminal; pipes get the raw text.
type renderer struct {
	term *glamour.TermRenderer
}

func newRenderer(w io.Writer, markdown bool) *renderer {
	r := &renderer{}
	if !markdown || !isTerminalWriter(w) || !ColorsEnabled() {
		return r
	}
	width := GetTerminalWidth() - 4
	if width < 40 {
		width = 40
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.term = tr
	}
	return r
}

// Render returns content ready to print, always ending in a newline.
func (r *renderer) Render(content string) string {
	if r.term != nil {
		if out, err := r.term.Render(content); err == nil {
			return out
		}
	}
	if strings.HasSuffix(content, "\n") {
		return content
	}
	return content + "\n"
}
