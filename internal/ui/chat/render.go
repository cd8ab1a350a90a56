// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"golang.org/x/time/rate"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// markdown renders finished assistant replies. Rendered output is cached per
// message until the wrap width changes.
type markdown struct {
	plain    bool
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdown(style string) *markdown {
	return &markdown{style: style, cache: make(map[string]string)}
}

// SetWidth changes the wrap width, dropping the renderer and cache if it differs.
func (md *markdown) SetWidth(width int) {
	if width == md.width {
		return
	}
	md.width = width
	md.renderer = nil
	md.cache = make(map[string]string)
}

// Render returns content as styled terminal text, or unchanged when plain. key identifies the content
// for caching; an empty key bypasses the cache. Content glamour cannot parse
// is returned unchanged.
func (md *markdown) Render(key, content string) string {
	if md.plain {
		return content
	}
	if key != "" {
		if out, ok := md.cache[key]; ok {
			return out
		}
	}
	if md.renderer == nil && md.width > 0 {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(md.style),
			glamour.WithWordWrap(md.width),
		)
		if err == nil {
			md.renderer = r
		}
	}
	out := content
	if md.renderer != nil {
		if rendered, err := md.renderer.Render(content); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	if key != "" {
		md.cache[key] = out
	}
	return out
}

// =============================================================================
// STREAM THROTTLE
// =============================================================================

// frameInterval is the minimum time between redraws of a streaming reply.
const frameInterval = 50 * time.Millisecond

// throttle limits how often partial snapshots are redrawn. A snapshot that
// arrives too early schedules one deferred redraw so the last text is never lost.
type throttle struct {
	limiter *rate.Limiter
	pending bool
}

func newThrottle() *throttle {
	return &throttle{limiter: rate.NewLimiter(rate.Every(frameInterval), 1)}
}

// Allow reports whether to redraw now. When it returns false, cmd is either a
// tick that will deliver renderTickMsg or nil if one is already pending.
func (t *throttle) Allow() (ok bool, cmd tea.Cmd) {
	if t.limiter.Allow() {
		return true, nil
	}
	if t.pending {
		return false, nil
	}
	t.pending = true
	return false, tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return renderTickMsg{}
	})
}

// Fired records that the deferred redraw has arrived.
func (t *throttle) Fired() {
	t.pending = false
}
