// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/storage"
	"github.com/jeranaias/iris/internal/ui/components"
	"github.com/jeranaias/iris/internal/ui/styles"
	"github.com/jeranaias/iris/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the current screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	m.updateStatusBar()
	if m.screen == ScreenList {
		return m.renderList()
	}
	return m.renderThread()
}

func (m Model) updateStatusBar() {
	switch {
	case m.alert.IsVisible():
		m.statusBar.SetStatus(components.StatusError)
	case m.streaming:
		m.statusBar.SetStatus(components.StatusGenerating)
	case !m.avail.IsAvailable():
		m.statusBar.SetStatus(components.StatusUnavailable)
	default:
		m.statusBar.SetStatus(components.StatusReady)
	}

	switch {
	case m.screen == ScreenList:
		m.statusBar.Shortcuts = m.keys.listShortcuts()
	case m.showUnavailable():
		m.statusBar.Shortcuts = m.keys.unavailableShortcuts()
	default:
		m.statusBar.Shortcuts = m.keys.threadShortcuts()
	}
}

func (m Model) renderHeader(subtitle string) string {
	title := m.theme.HeaderTitle.Render("iris")
	if subtitle != "" {
		room := m.width - 2 - lipgloss.Width(title) - 2
		title += "  " + util.TruncateWidth(subtitle, room)
	}
	return m.theme.Header.Width(m.width).Render(title)
}

// place centres content in a width x height block.
func (m Model) place(height int, content string) string {
	if height < 1 {
		height = 1
	}
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, content)
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// listRows is the number of conversation rows that fit on screen: the
// header, availability notice, footer and status bar take one line each.
func (m Model) listRows() int {
	rows := m.height - 4
	if rows < 1 {
		return 1
	}
	return rows
}

func (m Model) renderList() string {
	header := m.renderHeader(pluralize(len(m.conversations), "conversation"))

	notice := ""
	if !m.avail.IsAvailable() {
		notice = m.theme.WarningStyle.Render(styles.StatusIndicators.Warning + " " + m.avail.Description() + "  (r to retry)")
	}

	var body string
	switch {
	case m.alert.IsVisible():
		body = m.place(m.listRows(), m.alert.View())
	case len(m.conversations) == 0:
		body = m.place(m.listRows(), m.theme.EmptyState.Render("No conversations yet.\nPress n to start one."))
	default:
		body = m.renderRows()
	}

	footer := ""
	if m.confirmDelete {
		if meta, ok := m.selected(); ok {
			title := util.TruncateWidth(meta.Title, m.width/2)
			footer = m.theme.WarningStyle.Render(fmt.Sprintf("Delete %q? (y/n)", title))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, notice, body, footer, m.statusBar.View())
}

func (m Model) renderRows() string {
	rows := m.listRows()
	end := m.offset + rows
	if end > len(m.conversations) {
		end = len(m.conversations)
	}

	lines := make([]string, 0, rows)
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(m.conversations[i], i == m.cursor))
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderRow renders one conversation: title on the left, message count and
// last update on the right.
func (m Model) renderRow(meta storage.ConversationMeta, selected bool) string {
	// ListItem padding.
	room := m.width - 2

	info := fmt.Sprintf("%s  %s", pluralize(meta.MessageCount, "message"), util.RelativeTime(meta.UpdatedAt, m.opts.Now()))
	titleWidth := room - lipgloss.Width(info) - 2
	if titleWidth < 8 {
		titleWidth = room
		info = ""
	}
	title := util.PadWidth(util.TruncateWidth(meta.Title, titleWidth), titleWidth)

	if selected {
		line := title
		if info != "" {
			line += "  " + info
		}
		return m.theme.ListItemSelected.Width(m.width).Render(line)
	}
	line := title
	if info != "" {
		line += "  " + m.theme.ListMeta.Render(info)
	}
	return m.theme.ListItem.Width(m.width).Render(line)
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// =============================================================================
// THREAD VIEW
// =============================================================================

func (m Model) renderThread() string {
	title := ""
	if m.conv != nil {
		title = m.conv.Title
	}
	header := m.renderHeader(title)

	bodyHeight := m.viewport.Height + indicatorHeight + inputHeight + inputBorder

	var body string
	switch {
	case m.alert.IsVisible():
		body = m.place(bodyHeight, m.alert.View())
	case m.showUnavailable():
		body = m.place(bodyHeight, m.renderUnavailable())
	default:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.viewport.View(),
			m.renderIndicator(),
			m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.statusBar.View())
}

func (m Model) renderIndicator() string {
	if !m.streaming {
		return ""
	}
	return m.spinner.View() + " " + m.theme.StreamingLabel.Render("Generating...") +
		m.theme.ShortcutDesc.Render("  enter to stop")
}

// renderUnavailable explains why the model cannot be used.
func (m Model) renderUnavailable() string {
	lines := []string{
		m.theme.UnavailableTitle.Render(styles.StatusIndicators.Warning + " AI Model Unavailable"),
		"",
		m.avail.Description(),
		"",
		m.theme.ShortcutDesc.Render("Press r to check again, esc to go back"),
	}
	width := m.width - 8
	if width > 60 {
		width = 60
	}
	if width < 20 {
		width = 20
	}
	return m.theme.UnavailableBox.Width(width).Render(strings.Join(lines, "\n"))
}

// refreshViewport rebuilds the message list, staying at the bottom if the
// user had not scrolled up.
func (m *Model) refreshViewport() {
	if m.conv == nil {
		m.viewport.SetContent("")
		return
	}
	atBottom := m.viewport.AtBottom()

	var blocks []string
	for _, msg := range m.conv.Messages {
		blocks = append(blocks, m.renderMessage(msg))
	}
	if m.streaming {
		blocks = append(blocks, m.renderStreaming())
	}
	if len(blocks) == 0 {
		blocks = append(blocks, m.place(m.viewport.Height, m.theme.EmptyState.Render("Send a message to start.")))
	}

	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderMessage(msg *model.Message) string {
	bw := m.theme.BubbleWidth()
	stamp := m.theme.Timestamp.Render(msg.FormatTime())

	if msg.IsUser() {
		label := m.theme.ShortcutKey.Render(msg.Role.DisplayName()) + "  " + stamp
		bubble := m.theme.UserBubble.Width(bw).Render(msg.Content)
		return lipgloss.JoinVertical(lipgloss.Left, "    "+label, bubble)
	}

	label := m.theme.HeaderTitle.Render(msg.Role.DisplayName()) + "  " + stamp
	content := m.theme.ShortcutDesc.Render("(empty response)")
	if strings.TrimSpace(msg.Content) != "" {
		content = m.md.Render(msg.ID, msg.Content)
	}
	return lipgloss.JoinVertical(lipgloss.Left, label, m.theme.AssistantBubble.Width(bw).Render(content))
}

// renderStreaming renders the reply in progress as plain text; markdown is
// applied once it completes.
func (m Model) renderStreaming() string {
	label := m.theme.StreamingLabel.Render(model.RoleAssistant.DisplayName())
	content := m.partial
	if content == "" {
		content = m.theme.StreamingLabel.Render("Generating...")
	}
	return lipgloss.JoinVertical(lipgloss.Left, label, m.theme.AssistantBubble.Width(m.theme.BubbleWidth()).Render(content))
}
