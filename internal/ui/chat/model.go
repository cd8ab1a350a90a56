// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/session"
	"github.com/jeranaias/iris/internal/storage"
	"github.com/jeranaias/iris/internal/ui/components"
	"github.com/jeranaias/iris/internal/ui/styles"
)

// =============================================================================
// SCREENS
// =============================================================================

// Screen is the view the TUI is showing.
type Screen int

const (
	ScreenList   Screen = iota // Conversation list
	ScreenThread               // One conversation with input
)

// Layout heights of the fixed rows around the message viewport.
const (
	headerHeight    = 1
	indicatorHeight = 1
	inputHeight     = 3
	inputBorder     = 1
	statusBarHeight = 1
)

// defaultCheckTimeout bounds an availability re-check started with r.
const defaultCheckTimeout = 10 * time.Second

// =============================================================================
// MODEL
// =============================================================================

// Options configures a Model.
type Options struct {
	// ModelName is shown in the status bar.
	ModelName string

	// CheckTimeout bounds availability re-checks. Zero means 10s.
	CheckTimeout time.Duration

	// PlainText shows replies as written instead of rendering markdown.
	PlainText bool

	// Now returns the current time; used for relative timestamps.
	Now func() time.Time
}

// Model is the root Bubble Tea model of the TUI.
type Model struct {
	sessions Sessions
	theme    *styles.Theme
	keys     KeyMap
	opts     Options

	screen Screen
	width  int
	height int

	updates     <-chan session.Update
	unsubscribe func()

	avail gateway.Availability

	// Conversation list
	conversations []storage.ConversationMeta
	cursor        int
	offset        int
	confirmDelete bool

	// Thread view
	conv      *model.Conversation
	streaming bool
	partial   string

	viewport  viewport.Model
	input     textarea.Model
	spinner   spinner.Model
	alert     components.Alert
	statusBar *components.StatusBar
	md        *markdown
	throttle  *throttle
}

// New creates the TUI model and subscribes it to sessions. Call Close when
// the program exits.
func New(sessions Sessions, theme *styles.Theme, opts Options) Model {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = defaultCheckTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask something..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = theme.StreamingLabel

	updates, unsubscribe := sessions.Subscribe()

	md := newMarkdown(theme.GlamourStyle())
	md.plain = opts.PlainText

	sb := components.NewStatusBar(theme)
	sb.ModelName = opts.ModelName

	m := Model{
		sessions:    sessions,
		theme:       theme,
		keys:        keys,
		opts:        opts,
		screen:      ScreenList,
		updates:     updates,
		unsubscribe: unsubscribe,
		avail:       sessions.Availability(),
		viewport:    viewport.New(80, 20),
		input:       ta,
		spinner:     sp,
		alert:       components.NewAlert(theme),
		statusBar:   sb,
		md:          md,
		throttle:    newThrottle(),
	}
	m.resize(80, 24)
	return m
}

// Init starts listening for session updates and loads the conversation list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForUpdate(m.updates),
		loadConversationsCmd(m.sessions),
		m.spinner.Tick,
		textarea.Blink,
	)
}

// Close stops the session subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Screen returns the current screen.
func (m Model) Screen() Screen {
	return m.screen
}

// Conversation returns the conversation shown in the thread view, or nil.
func (m Model) Conversation() *model.Conversation {
	return m.conv
}

// Conversations returns the loaded conversation list.
func (m Model) Conversations() []storage.ConversationMeta {
	return m.conversations
}

// Streaming reports whether the open conversation has a reply in progress.
func (m Model) Streaming() bool {
	return m.streaming
}

// Partial returns the streamed reply so far.
func (m Model) Partial() string {
	return m.partial
}

// AlertVisible reports whether an error alert is showing.
func (m Model) AlertVisible() bool {
	return m.alert.IsVisible()
}

// AlertMessage returns the message of the visible alert.
func (m Model) AlertMessage() string {
	return m.alert.Message()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.screen == ScreenThread {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case SessionUpdateMsg:
		cmd := m.handleSessionUpdate(msg.Update)
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case SubscriptionClosedMsg:
		return m, nil

	case AvailabilityMsg:
		m.avail = msg.Availability
		return m, nil

	case SubmitResultMsg:
		return m.handleSubmitResult(msg)

	case ConversationsLoadedMsg:
		if msg.Err != nil {
			m.alert.Show("Could not load conversations", msg.Err.Error())
			return m, nil
		}
		m.conversations = msg.Conversations
		m.clampCursor()
		return m, nil

	case ConversationOpenedMsg:
		if msg.Err != nil {
			m.alert.Show("Could not open conversation", msg.Err.Error())
			return m, nil
		}
		m.openConversation(msg.Conversation)
		return m, nil

	case conversationRefreshedMsg:
		if msg.err == nil && m.conv != nil && msg.conv.ID == m.conv.ID {
			m.conv = msg.conv
			m.refreshViewport()
		}
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			m.alert.Show("Could not delete conversation", msg.Err.Error())
			return m, nil
		}
		if m.conv != nil && m.conv.ID == msg.ID {
			m.conv = nil
		}
		return m, loadConversationsCmd(m.sessions)

	case renderTickMsg:
		m.throttle.Fired()
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.screen == ScreenThread {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.statusBar.SetWidth(width)
	m.alert.SetWidth(width)

	vpHeight := height - headerHeight - indicatorHeight - inputHeight - inputBorder - statusBarHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.input.SetWidth(width)
	// Bubble border and padding take four columns.
	m.md.SetWidth(m.theme.BubbleWidth() - 4)
	m.clampCursor()
	m.refreshViewport()
}

// =============================================================================
// SESSION UPDATES
// =============================================================================

func (m *Model) handleSessionUpdate(u session.Update) tea.Cmd {
	if u.Kind == session.UpdateAvailability {
		m.avail = u.Availability
		return nil
	}

	current := m.conv != nil && u.ConversationID == m.conv.ID

	switch u.Kind {
	case session.UpdatePartial:
		if !current {
			return nil
		}
		m.streaming = true
		m.partial = u.Content
		ok, cmd := m.throttle.Allow()
		if ok {
			m.refreshViewport()
		}
		return cmd

	case session.UpdateStatus:
		switch {
		case u.Status == session.StatusStreaming:
			if current {
				m.streaming = true
				m.partial = ""
				m.refreshViewport()
			}
			return nil

		case u.Status.IsTerminal():
			cmds := []tea.Cmd{loadConversationsCmd(m.sessions)}
			if current {
				m.streaming = false
				m.partial = ""
				if u.Status == session.StatusFailed {
					m.alert.Show("Response failed", u.Error)
				}
				cmds = append(cmds, refreshConversationCmd(m.sessions, u.ConversationID))
				m.refreshViewport()
			}
			return tea.Batch(cmds...)
		}
	}
	return nil
}

func (m Model) handleSubmitResult(msg SubmitResultMsg) (tea.Model, tea.Cmd) {
	if msg.Exchange != nil && m.conv != nil && msg.ConversationID == m.conv.ID {
		if !hasMessage(m.conv, msg.Exchange.UserMessage) {
			first := m.conv.IsEmpty()
			m.conv.Append(msg.Exchange.UserMessage.Clone())
			if first {
				m.conv.UpdateTitle(msg.Exchange.Prompt)
			}
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
	}
	if msg.Err != nil {
		title := "Could not send"
		if session.IsUnavailable(msg.Err) {
			title = "AI Model Unavailable"
		}
		m.alert.Show(title, msg.Err.Error())
	}
	return m, nil
}

func hasMessage(conv *model.Conversation, msg *model.Message) bool {
	if msg == nil {
		return true
	}
	for _, existing := range conv.Messages {
		if existing.ID == msg.ID {
			return true
		}
	}
	return false
}

// openConversation shows conv in the thread view, picking up any reply
// already streaming for it.
func (m *Model) openConversation(conv *model.Conversation) {
	m.conv = conv
	m.screen = ScreenThread
	m.confirmDelete = false

	snap := m.sessions.State(conv.ID)
	m.streaming = snap.Status == session.StatusStreaming
	m.partial = ""
	if m.streaming {
		m.partial = snap.Content
	}
	m.input.Reset()
	m.input.Focus()
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.alert.IsVisible() {
		var cmd tea.Cmd
		m.alert, cmd = m.alert.Update(msg)
		return m, cmd
	}

	if key.Matches(msg, m.keys.Quit) {
		if m.streaming && m.conv != nil {
			m.sessions.Cancel(m.conv.ID)
		}
		return m, tea.Quit
	}

	if m.screen == ScreenList {
		return m.handleListKey(msg)
	}
	return m.handleThreadKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete {
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.confirmDelete = false
			if meta, ok := m.selected(); ok {
				return m, deleteConversationCmd(m.sessions, meta.ID)
			}
		case key.Matches(msg, m.keys.No):
			m.confirmDelete = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.clampCursor()
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.conversations)-1 {
			m.cursor++
		}
		m.clampCursor()
	case key.Matches(msg, m.keys.Open):
		if meta, ok := m.selected(); ok {
			return m, openConversationCmd(m.sessions, meta.ID)
		}
	case key.Matches(msg, m.keys.New):
		return m, newConversationCmd(m.sessions)
	case key.Matches(msg, m.keys.Delete):
		if _, ok := m.selected(); ok {
			m.confirmDelete = true
		}
	case key.Matches(msg, m.keys.Retry):
		return m, checkAvailabilityCmd(m.sessions, m.opts.CheckTimeout)
	}
	return m, nil
}

func (m Model) handleThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenList
		m.input.Blur()
		return m, loadConversationsCmd(m.sessions)

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.showUnavailable() {
		if key.Matches(msg, m.keys.Retry) {
			return m, checkAvailabilityCmd(m.sessions, m.opts.CheckTimeout)
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Send) {
		if m.streaming {
			m.sessions.Cancel(m.conv.ID)
			return m, nil
		}
		prompt := m.input.Value()
		if strings.TrimSpace(prompt) == "" {
			return m, nil
		}
		m.input.Reset()
		return m, submitCmd(m.sessions, m.conv.ID, prompt)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// showUnavailable reports whether the thread view should explain that the
// model cannot be used instead of offering input. A reply already
// streaming keeps the normal view so it can finish or be stopped.
func (m Model) showUnavailable() bool {
	return !m.avail.IsAvailable() && !m.streaming
}

func (m Model) selected() (storage.ConversationMeta, bool) {
	if m.cursor < 0 || m.cursor >= len(m.conversations) {
		return storage.ConversationMeta{}, false
	}
	return m.conversations[m.cursor], true
}

// clampCursor keeps the cursor on a row and the row inside the visible window.
func (m *Model) clampCursor() {
	if m.cursor >= len(m.conversations) {
		m.cursor = len(m.conversations) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	rows := m.listRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}
