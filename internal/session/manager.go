// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/storage"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Config holds configuration for the session manager.
type Config struct {
	// Instructions are sent with every prompt (default: gateway.DefaultInstructions).
	Instructions string

	// Logger receives exchange lifecycle events (default: disabled).
	Logger *zerolog.Logger
}

// Manager mediates exchanges between conversations, the model, and the store.
// It is safe for concurrent use.
type Manager struct {
	store        storage.Store
	gw           gateway.Gateway
	instructions string
	log          zerolog.Logger

	// ctx parents every exchange; Close cancels it.
	ctx       context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	availability gateway.Availability
	checkSeq     uint64 // last check started
	appliedSeq   uint64 // check that produced availability
	exchanges    map[string]*Exchange
	convs        map[string]*model.Conversation
	lastErr      map[string]string
	subs         map[*subscriber]struct{}
}

// NewManager creates a manager and performs the first availability check.
func NewManager(ctx context.Context, store storage.Store, gw gateway.Gateway, cfg Config) *Manager {
	if cfg.Instructions == "" {
		cfg.Instructions = gateway.DefaultInstructions
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "session").Logger()
	}

	base, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:        store,
		gw:           gw,
		instructions: cfg.Instructions,
		log:          log,
		ctx:          base,
		cancelAll:    cancel,
		exchanges:    make(map[string]*Exchange),
		convs:        make(map[string]*model.Conversation),
		lastErr:      make(map[string]string),
		subs:         make(map[*subscriber]struct{}),
	}
	m.CheckAvailability(ctx)
	return m
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// CheckAvailability queries the gateway, records the result for future
// Submit calls, and publishes it. Exchanges already streaming are unaffected.
// When checks overlap, the one started last wins; an older result that
// arrives late is dropped and the recorded availability is returned instead.
func (m *Manager) CheckAvailability(ctx context.Context) gateway.Availability {
	m.mu.Lock()
	m.checkSeq++
	seq := m.checkSeq
	m.mu.Unlock()

	a := m.gw.Availability(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.appliedSeq {
		m.log.Debug().Str("availability", a.String()).Msg("stale availability check dropped")
		return m.availability
	}
	m.appliedSeq = seq
	m.availability = a
	m.publishLocked(Update{Kind: UpdateAvailability, Availability: a})
	m.log.Debug().Str("availability", a.String()).Msg("availability checked")
	return a
}

// Availability returns the result of the last check.
func (m *Manager) Availability() gateway.Availability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availability
}

// =============================================================================
// EXCHANGE LIFECYCLE
// =============================================================================

// Submit sends prompt to the model on behalf of a conversation.
//
// The trimmed prompt is appended as a user message and saved before Submit
// returns; the first message of a conversation also sets its title. The
// reply streams in the background. Submit is refused while the conversation
// has an exchange, or while the model is unavailable.
//
// If the user message cannot be saved the exchange fails at once: Submit
// returns the exchange together with a persistence *Error, and the message
// stays in the in-memory conversation. An exchange cancelled during the save
// is returned as cancelled, with ErrConversationNotFound if the conversation
// was deleted in the meantime.
func (m *Manager) Submit(ctx context.Context, conversationID, prompt string) (*Exchange, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	conv, err := m.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if _, active := m.exchanges[conversationID]; active {
		m.mu.Unlock()
		return nil, ErrExchangeActive
	}
	if a := m.availability; !a.IsAvailable() {
		m.mu.Unlock()
		return nil, unavailableError(a)
	}
	if m.convs[conversationID] != conv {
		// Deleted while we were loading it.
		m.mu.Unlock()
		return nil, ErrConversationNotFound
	}

	msg := model.NewUserMessage(prompt)
	conv.Append(msg)
	if conv.MessageCount() == 1 {
		conv.UpdateTitle(prompt)
	}
	head := header(conv)

	exCtx, cancel := context.WithCancel(m.ctx)
	ex := &Exchange{
		ConversationID: conversationID,
		Prompt:         prompt,
		UserMessage:    msg.Clone(),
		status:         StatusStreaming,
		conv:           conv,
		ctx:            exCtx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	m.exchanges[conversationID] = ex
	delete(m.lastErr, conversationID)
	m.wg.Add(1)
	m.publishLocked(Update{Kind: UpdateStatus, ConversationID: conversationID, Status: StatusStreaming})
	m.mu.Unlock()

	m.log.Debug().Str("conversation_id", conversationID).Msg("exchange started")

	saveErr := m.persist(ctx, msg, head)

	m.mu.Lock()
	defer m.mu.Unlock()

	if ex.status != StatusStreaming {
		// Cancelled while the user message was being saved; a save that
		// failed because the conversation was deleted meanwhile is not a
		// persistence failure of this exchange.
		m.wg.Done()
		if saveErr != nil && errors.Is(saveErr, storage.ErrConversationNotFound) {
			return ex, ErrConversationNotFound
		}
		return ex, nil
	}
	if saveErr != nil {
		m.wg.Done()
		perr := persistenceError("save message", saveErr)
		m.log.Error().Err(saveErr).Str("conversation_id", conversationID).Msg("failed to save user message")
		m.finishLocked(ex, StatusFailed, nil, perr)
		return ex, perr
	}

	go m.run(ex)
	return ex, nil
}

// run drives the gateway stream of one exchange.
func (m *Manager) run(ex *Exchange) {
	defer m.wg.Done()

	stream, err := m.gw.StreamRespond(ex.ctx, ex.Prompt, m.instructions)
	if err != nil {
		m.fail(ex, err)
		return
	}
	defer stream.Close()

	for {
		snapshot, err := stream.Next()
		if err == io.EOF {
			m.complete(ex)
			return
		}
		if err != nil {
			m.fail(ex, err)
			return
		}
		if !m.partial(ex, snapshot) {
			return
		}
	}
}

// partial replaces the buffer with snapshot. It returns false once the
// exchange has left streaming; the snapshot is then discarded.
func (m *Manager) partial(ex *Exchange, snapshot string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ex.status != StatusStreaming {
		return false
	}
	ex.buffer = snapshot
	m.publishLocked(Update{
		Kind:           UpdatePartial,
		ConversationID: ex.ConversationID,
		Status:         StatusStreaming,
		Content:        snapshot,
	})
	return true
}

// complete turns the final buffer into a persisted assistant message.
func (m *Manager) complete(ex *Exchange) {
	m.mu.Lock()
	if ex.status != StatusStreaming {
		m.mu.Unlock()
		return
	}
	// Stays registered until saved, so Submit keeps refusing.
	ex.status = StatusCompleted
	msg := model.NewAssistantMessage(ex.buffer)
	ex.conv.Append(msg)
	head := header(ex.conv)
	m.mu.Unlock()

	// Not the exchange context: the reply is saved even if Close is under way.
	saveErr := m.persist(context.Background(), msg, head)

	m.mu.Lock()
	defer m.mu.Unlock()
	if saveErr != nil {
		m.log.Error().Err(saveErr).Str("conversation_id", ex.ConversationID).Msg("failed to save assistant message")
		m.finishLocked(ex, StatusFailed, msg, persistenceError("save response", saveErr))
		return
	}
	m.finishLocked(ex, StatusCompleted, msg, nil)
}

// fail ends a streaming exchange with a gateway error.
func (m *Manager) fail(ex *Exchange, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ex.status != StatusStreaming {
		return
	}
	m.log.Warn().Err(err).Str("conversation_id", ex.ConversationID).Msg("exchange failed")
	m.finishLocked(ex, StatusFailed, nil, gatewayError(err))
}

// Cancel aborts the conversation's streaming exchange. Nothing is saved and no
// error is surfaced. It is a no-op when there is nothing to cancel.
func (m *Manager) Cancel(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ex, ok := m.exchanges[conversationID]
	if !ok || ex.status != StatusStreaming {
		return
	}
	m.finishLocked(ex, StatusCancelled, nil, nil)
}

// finishLocked settles ex, publishes its terminal status followed by idle,
// and unregisters it. Callers hold m.mu.
func (m *Manager) finishLocked(ex *Exchange, status Status, msg *model.Message, err error) {
	ex.status = status
	ex.buffer = ""
	ex.outcome = Outcome{Status: status, Message: msg.Clone(), Err: err}
	ex.cancel()

	if m.exchanges[ex.ConversationID] == ex {
		delete(m.exchanges, ex.ConversationID)
	}

	u := Update{Kind: UpdateStatus, ConversationID: ex.ConversationID, Status: status}
	switch {
	case err != nil:
		u.Error = err.Error()
		m.lastErr[ex.ConversationID] = u.Error
	case status == StatusCompleted:
		u.Message = msg
	}
	m.publishLocked(u)
	m.publishLocked(Update{Kind: UpdateStatus, ConversationID: ex.ConversationID, Status: StatusIdle})

	m.log.Debug().
		Str("conversation_id", ex.ConversationID).
		Str("status", status.String()).
		Msg("exchange finished")
	close(ex.done)
}

// State returns the polled view of a conversation.
func (m *Manager) State(conversationID string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ex, ok := m.exchanges[conversationID]; ok {
		return Snapshot{Status: ex.status, Content: ex.buffer}
	}
	return Snapshot{Status: StatusIdle, Error: m.lastErr[conversationID]}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns every future Update in order, and a function that ends
// the subscription. The channel is closed when either is called or the
// Manager is closed.
func (m *Manager) Subscribe() (<-chan Update, func()) {
	s := newSubscriber()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.stop()
		return s.out, func() {}
	}
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	return s.out, func() {
		m.mu.Lock()
		delete(m.subs, s)
		m.mu.Unlock()
		s.stop()
	}
}

// publishLocked queues u for every subscriber. Each one gets its own copy
// of u.Message; the manager's message is never handed out.
func (m *Manager) publishLocked(u Update) {
	for s := range m.subs {
		if u.Message != nil {
			u.Message = u.Message.Clone()
		}
		s.push(u)
	}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation creates and saves an empty conversation.
func (m *Manager) NewConversation(ctx context.Context) (*model.Conversation, error) {
	conv := model.NewConversation()
	if err := m.store.InsertConversation(ctx, conv); err != nil {
		return nil, persistenceError("create conversation", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[conv.ID] = conv
	return conv.Clone(), nil
}

// Conversation returns a copy of a conversation, including messages kept in
// memory after a failed save.
func (m *Manager) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := m.loadConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return conv.Clone(), nil
}

// Conversations lists saved conversations, most recently updated first.
func (m *Manager) Conversations(ctx context.Context) ([]storage.ConversationMeta, error) {
	metas, err := m.store.ListConversations(ctx)
	if err != nil {
		return nil, persistenceError("list conversations", err)
	}
	return metas, nil
}

// DeleteConversation cancels any exchange of the conversation, waits for it to
// settle, then deletes the conversation and its messages.
func (m *Manager) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	ex := m.exchanges[id]
	if ex != nil && ex.status == StatusStreaming {
		m.finishLocked(ex, StatusCancelled, nil, nil)
	}
	m.mu.Unlock()

	if ex != nil {
		select {
		case <-ex.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := m.store.DeleteConversation(ctx, id)

	m.mu.Lock()
	delete(m.convs, id)
	delete(m.lastErr, id)
	m.mu.Unlock()

	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			return ErrConversationNotFound
		}
		return persistenceError("delete conversation", err)
	}
	m.log.Debug().Str("conversation_id", id).Msg("conversation deleted")
	return nil
}

// loadConversation returns the shared in-memory conversation, loading it
// from the store on first use.
func (m *Manager) loadConversation(ctx context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	conv, ok := m.convs[id]
	m.mu.Unlock()
	if ok {
		return conv, nil
	}

	loaded, err := m.store.LoadConversation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, persistenceError("load conversation", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		return conv, nil
	}
	m.convs[id] = loaded
	return loaded, nil
}

// persist saves a new message and the conversation fields it changed.
func (m *Manager) persist(ctx context.Context, msg *model.Message, head *model.Conversation) error {
	if err := m.store.InsertMessage(ctx, msg); err != nil {
		return err
	}
	return m.store.SaveConversation(ctx, head)
}

// header copies the fields SaveConversation writes. Callers hold m.mu.
func header(conv *model.Conversation) *model.Conversation {
	return &model.Conversation{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

// =============================================================================
// SHUTDOWN
// =============================================================================

// Close cancels every streaming exchange, waits for background work, and
// ends all subscriptions once their queued updates are delivered.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, ex := range m.exchanges {
		if ex.status == StatusStreaming {
			m.finishLocked(ex, StatusCancelled, nil, nil)
		}
	}
	m.mu.Unlock()

	m.cancelAll()
	m.wg.Wait()

	m.mu.Lock()
	for s := range m.subs {
		s.finish()
		delete(m.subs, s)
	}
	m.mu.Unlock()
	return nil
}
