// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/session"
	"github.com/jeranaias/iris/internal/storage"
	"github.com/jeranaias/iris/internal/ui/styles"
)

// =============================================================================
// FAKE SESSIONS
// =============================================================================

type fakeSessions struct {
	mu        sync.Mutex
	avail     gateway.Availability
	recheck   gateway.Availability
	convs     map[string]*model.Conversation
	submitted []string
	cancelled []string
	submitErr error
	states    map[string]session.Snapshot
	updates   chan session.Update
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		avail:   gateway.Available,
		recheck: gateway.Available,
		convs:   make(map[string]*model.Conversation),
		states:  make(map[string]session.Snapshot),
		updates: make(chan session.Update, 16),
	}
}

func (f *fakeSessions) add(title string, messages ...string) *model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := model.NewConversation()
	conv.Title = title
	for i, text := range messages {
		if i%2 == 0 {
			conv.Append(model.NewUserMessage(text))
		} else {
			conv.Append(model.NewAssistantMessage(text))
		}
	}
	f.convs[conv.ID] = conv
	return conv
}

func (f *fakeSessions) Submit(ctx context.Context, id, prompt string) (*session.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	conv, ok := f.convs[id]
	if !ok {
		return nil, session.ErrConversationNotFound
	}
	f.submitted = append(f.submitted, prompt)
	prompt = strings.TrimSpace(prompt)
	msg := model.NewUserMessage(prompt)
	conv.Append(msg)
	return &session.Exchange{ConversationID: id, Prompt: prompt, UserMessage: msg}, nil
}

func (f *fakeSessions) Cancel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
}

func (f *fakeSessions) State(id string) session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id]
}

func (f *fakeSessions) Subscribe() (<-chan session.Update, func()) {
	return f.updates, func() {}
}

func (f *fakeSessions) CheckAvailability(ctx context.Context) gateway.Availability {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avail = f.recheck
	return f.avail
}

func (f *fakeSessions) Availability() gateway.Availability {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail
}

func (f *fakeSessions) NewConversation(ctx context.Context) (*model.Conversation, error) {
	return f.add(model.DefaultTitle), nil
}

func (f *fakeSessions) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, session.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

func (f *fakeSessions) Conversations(ctx context.Context) ([]storage.ConversationMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	metas := make([]storage.ConversationMeta, 0, len(f.convs))
	for _, c := range f.convs {
		metas = append(metas, storage.ConversationMeta{
			ID:           c.ID,
			Title:        c.Title,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			MessageCount: c.MessageCount(),
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].UpdatedAt.After(metas[j].UpdatedAt) })
	return metas, nil
}

func (f *fakeSessions) DeleteConversation(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.convs[id]; !ok {
		return session.ErrConversationNotFound
	}
	delete(f.convs, id)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, f *fakeSessions) Model {
	t.Helper()
	m := New(f, styles.NewTheme(styles.ModeDark), Options{ModelName: "llama3"})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	return m
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadList(t *testing.T, m Model) Model {
	t.Helper()
	return run(t, m, loadConversationsCmd(m.sessions))
}

func openFirst(t *testing.T, m Model) Model {
	t.Helper()
	m = loadList(t, m)
	m, cmd := update(t, m, keyPress("enter"))
	return run(t, m, cmd)
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

func TestList_ShowsConversations(t *testing.T) {
	f := newFakeSessions()
	f.add("Weekend plans", "hi", "hello")
	m := loadList(t, newTestModel(t, f))

	require.Len(t, m.Conversations(), 1)
	view := m.View()
	assert.Contains(t, view, "Weekend plans")
	assert.Contains(t, view, "2 messages")
	assert.Contains(t, view, "Ready")
}

func TestList_EmptyState(t *testing.T) {
	m := loadList(t, newTestModel(t, newFakeSessions()))
	assert.Contains(t, m.View(), "No conversations yet.")
}

func TestList_CursorStaysInRange(t *testing.T) {
	f := newFakeSessions()
	f.add("one")
	f.add("two")
	m := loadList(t, newTestModel(t, f))

	m, _ = update(t, m, keyPress("up"))
	assert.Equal(t, 0, m.cursor)
	m, _ = update(t, m, keyPress("down"))
	m, _ = update(t, m, keyPress("down"))
	assert.Equal(t, 1, m.cursor)
}

func TestList_NewOpensThread(t *testing.T) {
	f := newFakeSessions()
	m := newTestModel(t, f)

	m, cmd := update(t, m, keyPress("n"))
	m = run(t, m, cmd)

	assert.Equal(t, ScreenThread, m.Screen())
	require.NotNil(t, m.Conversation())
	assert.Equal(t, model.DefaultTitle, m.Conversation().Title)
	assert.Contains(t, m.View(), "Send a message to start.")
}

func TestList_DeleteAsksFirst(t *testing.T) {
	f := newFakeSessions()
	f.add("Doomed")
	m := loadList(t, newTestModel(t, f))

	m, cmd := update(t, m, keyPress("d"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), `Delete "Doomed"? (y/n)`)

	m, cmd = update(t, m, keyPress("n"))
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "Delete \"Doomed\"?")
	assert.Len(t, f.convs, 1)

	m, _ = update(t, m, keyPress("d"))
	m, cmd = update(t, m, keyPress("y"))
	m = run(t, m, cmd)
	assert.Empty(t, f.convs)

	// The delete result reloads the list.
	_, cmd = update(t, m, ConversationDeletedMsg{ID: "x"})
	m = run(t, m, cmd)
	assert.Empty(t, m.Conversations())
}

func TestList_UnavailableNotice(t *testing.T) {
	f := newFakeSessions()
	f.avail = gateway.Unavailable(gateway.ReasonCapabilityNotEnabled)
	m := loadList(t, newTestModel(t, f))

	view := m.View()
	assert.Contains(t, view, "Please start the local model server")
	assert.Contains(t, view, "Unavailable")
}

// =============================================================================
// THREAD VIEW
// =============================================================================

func TestThread_OpenShowsMessages(t *testing.T) {
	f := newFakeSessions()
	f.add("Greeting", "hi there", "howdy")
	m := openFirst(t, newTestModel(t, f))

	assert.Equal(t, ScreenThread, m.Screen())
	view := m.View()
	assert.Contains(t, view, "Greeting")
	assert.Contains(t, view, "hi there")
	assert.Contains(t, view, "howdy")
}

func TestThread_SendSubmitsPrompt(t *testing.T) {
	f := newFakeSessions()
	conv := f.add(model.DefaultTitle)
	m := openFirst(t, newTestModel(t, f))

	m.input.SetValue("  what is go?  ")
	m, cmd := update(t, m, keyPress("enter"))
	assert.Empty(t, m.input.Value())
	m = run(t, m, cmd)

	assert.Equal(t, []string{"  what is go?  "}, f.submitted)
	require.Equal(t, 1, m.Conversation().MessageCount())
	assert.Equal(t, conv.ID, m.Conversation().ID)
	assert.Equal(t, "what is go?", m.Conversation().Title)
}

func TestThread_BlankInputIgnored(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))

	m.input.SetValue("   ")
	_, cmd := update(t, m, keyPress("enter"))
	assert.Nil(t, cmd)
	assert.Empty(t, f.submitted)
}

func TestThread_SubmitResultDoesNotDuplicate(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))

	msg := model.NewUserMessage("hello")
	ex := &session.Exchange{ConversationID: m.Conversation().ID, Prompt: "hello", UserMessage: msg}
	m, _ = update(t, m, SubmitResultMsg{ConversationID: ex.ConversationID, Exchange: ex})
	m, _ = update(t, m, SubmitResultMsg{ConversationID: ex.ConversationID, Exchange: ex})
	assert.Equal(t, 1, m.Conversation().MessageCount())
}

func TestThread_StreamingLifecycle(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))
	id := m.Conversation().ID

	m, _ = update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind: session.UpdateStatus, ConversationID: id, Status: session.StatusStreaming,
	}})
	assert.True(t, m.Streaming())
	assert.Contains(t, m.View(), "Generating...")

	m, _ = update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind: session.UpdatePartial, ConversationID: id, Content: "Hello",
	}})
	assert.Equal(t, "Hello", m.Partial())
	assert.Contains(t, m.View(), "Hello")

	m, cmd := update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind: session.UpdateStatus, ConversationID: id, Status: session.StatusCompleted,
		Message: model.NewAssistantMessage("Hello world"),
	}})
	assert.False(t, m.Streaming())
	assert.Empty(t, m.Partial())
	assert.NotNil(t, cmd)
	assert.False(t, m.AlertVisible())
}

func TestThread_IgnoresOtherConversations(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))

	m, _ = update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind: session.UpdatePartial, ConversationID: "someone-else", Content: "nope",
	}})
	assert.False(t, m.Streaming())
	assert.Empty(t, m.Partial())
}

func TestThread_EnterStopsStreaming(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))
	id := m.Conversation().ID

	m, _ = update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind: session.UpdateStatus, ConversationID: id, Status: session.StatusStreaming,
	}})
	m.input.SetValue("another question")
	m, cmd := update(t, m, keyPress("enter"))

	assert.Nil(t, cmd)
	assert.Equal(t, []string{id}, f.cancelled)
	assert.Empty(t, f.submitted)
	assert.Equal(t, "another question", m.input.Value())
}

func TestThread_ReopenPicksUpStream(t *testing.T) {
	f := newFakeSessions()
	conv := f.add("x", "question")
	f.states[conv.ID] = session.Snapshot{Status: session.StatusStreaming, Content: "partial ans"}

	m := openFirst(t, newTestModel(t, f))
	assert.True(t, m.Streaming())
	assert.Equal(t, "partial ans", m.Partial())
}

func TestThread_FailureShowsAlert(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))
	id := m.Conversation().ID

	m, _ = update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind: session.UpdateStatus, ConversationID: id, Status: session.StatusFailed,
		Error: "Failed to get response: connection refused",
	}})
	require.True(t, m.AlertVisible())
	assert.Contains(t, m.AlertMessage(), "connection refused")
	assert.Contains(t, m.View(), "Response failed")

	m, _ = update(t, m, keyPress("esc"))
	assert.False(t, m.AlertVisible())
	assert.Equal(t, ScreenThread, m.Screen())
}

func TestThread_SubmitErrorShowsAlert(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))
	f.submitErr = &session.Error{Kind: session.KindUnavailable, Message: "Please start the local model server"}

	m.input.SetValue("hi")
	m, cmd := update(t, m, keyPress("enter"))
	m = run(t, m, cmd)

	require.True(t, m.AlertVisible())
	assert.Contains(t, m.View(), "AI Model Unavailable")
	assert.Equal(t, 0, m.Conversation().MessageCount())
}

func TestThread_UnavailableViewAndRetry(t *testing.T) {
	f := newFakeSessions()
	f.avail = gateway.Unavailable(gateway.ReasonModelNotReady)
	f.add("x")
	m := openFirst(t, newTestModel(t, f))

	view := m.View()
	assert.Contains(t, view, "AI Model Unavailable")
	assert.Contains(t, view, "The AI model is downloading or not ready")

	// Enter does nothing while unavailable.
	_, cmd := update(t, m, keyPress("enter"))
	assert.Nil(t, cmd)

	m, cmd = update(t, m, keyPress("r"))
	m = run(t, m, cmd)
	assert.True(t, m.avail.IsAvailable())
	assert.NotContains(t, m.View(), "AI Model Unavailable")
}

func TestThread_AvailabilityUpdate(t *testing.T) {
	f := newFakeSessions()
	m := newTestModel(t, f)

	m, _ = update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind:         session.UpdateAvailability,
		Availability: gateway.UnavailableOther("quota exceeded"),
	}})
	assert.False(t, m.avail.IsAvailable())
	m = loadList(t, m)
	assert.Contains(t, m.View(), "Model unavailable: quota exceeded")
}

func TestThread_BackReturnsToList(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))

	m, cmd := update(t, m, keyPress("esc"))
	assert.Equal(t, ScreenList, m.Screen())
	assert.NotNil(t, cmd)
}

func TestQuitCancelsStream(t *testing.T) {
	f := newFakeSessions()
	f.add("x")
	m := openFirst(t, newTestModel(t, f))
	id := m.Conversation().ID
	m, _ = update(t, m, SessionUpdateMsg{Update: session.Update{
		Kind: session.UpdateStatus, ConversationID: id, Status: session.StatusStreaming,
	}})

	_, cmd := update(t, m, keyPress("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, []string{id}, f.cancelled)
}

func TestOpenError(t *testing.T) {
	m := newTestModel(t, newFakeSessions())
	m, _ = update(t, m, ConversationOpenedMsg{Err: errors.New("disk on fire")})
	assert.True(t, m.AlertVisible())
	assert.Equal(t, ScreenList, m.Screen())
}

// =============================================================================
// RENDERING
// =============================================================================

func TestThrottle(t *testing.T) {
	th := newThrottle()

	ok, cmd := th.Allow()
	assert.True(t, ok)
	assert.Nil(t, cmd)

	ok, cmd = th.Allow()
	assert.False(t, ok)
	assert.NotNil(t, cmd)

	ok, cmd = th.Allow()
	assert.False(t, ok)
	assert.Nil(t, cmd, "only one deferred redraw at a time")

	th.Fired()
	time.Sleep(2 * frameInterval)
	ok, _ = th.Allow()
	assert.True(t, ok)
}

func TestMarkdownCachesByKey(t *testing.T) {
	md := newMarkdown(styles.NewTheme(styles.ModeDark).GlamourStyle())
	md.SetWidth(60)

	first := md.Render("m1", "**bold**")
	assert.Contains(t, first, "bold")
	assert.NotContains(t, first, "**")
	assert.Equal(t, first, md.Render("m1", "something else"))

	md.SetWidth(40)
	assert.Contains(t, md.Render("m1", "replaced"), "replaced")
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 message", pluralize(1, "message"))
	assert.Equal(t, "0 messages", pluralize(0, "message"))
	assert.Equal(t, "3 conversations", pluralize(3, "conversation"))
}
