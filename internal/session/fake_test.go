// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/storage"
)

const testTimeout = 5 * time.Second

// =============================================================================
// SCRIPTED GATEWAY
// =============================================================================

// scriptedGateway hands every stream it opens to the test, which then feeds
// it snapshots, errors, or the end of the reply.
type scriptedGateway struct {
	mu      sync.Mutex
	avail   gateway.Availability
	opened  chan *scriptedStream
	openErr error

	// checks, when set, receives one reply channel per availability query.
	checks chan chan gateway.Availability
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{avail: gateway.Available, opened: make(chan *scriptedStream, 16)}
}

func (g *scriptedGateway) setAvailability(a gateway.Availability) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.avail = a
}

func (g *scriptedGateway) Availability(ctx context.Context) gateway.Availability {
	g.mu.Lock()
	avail, checks := g.avail, g.checks
	g.mu.Unlock()
	if checks == nil {
		return avail
	}
	reply := make(chan gateway.Availability)
	checks <- reply
	return <-reply
}

// holdChecks makes availability queries wait for the test to answer them.
func (g *scriptedGateway) holdChecks() chan chan gateway.Availability {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks = make(chan chan gateway.Availability)
	return g.checks
}

func (g *scriptedGateway) Respond(ctx context.Context, prompt, instructions string) (string, error) {
	return "reply to " + prompt, nil
}

func (g *scriptedGateway) StreamRespond(ctx context.Context, prompt, instructions string) (gateway.Stream, error) {
	g.mu.Lock()
	err := g.openErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s := &scriptedStream{ctx: ctx, prompt: prompt, events: make(chan streamEvent, 16)}
	g.opened <- s
	return s, nil
}

// next waits for the manager to open a stream.
func (g *scriptedGateway) next(t *testing.T) *scriptedStream {
	t.Helper()
	select {
	case s := <-g.opened:
		return s
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the stream to open")
		return nil
	}
}

type streamEvent struct {
	snapshot string
	err      error
}

type scriptedStream struct {
	ctx    context.Context
	prompt string
	events chan streamEvent
	closed atomic.Bool
}

func (s *scriptedStream) Next() (string, error) {
	select {
	case e := <-s.events:
		return e.snapshot, e.err
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	}
}

func (s *scriptedStream) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *scriptedStream) send(snapshots ...string) {
	for _, snap := range snapshots {
		s.events <- streamEvent{snapshot: snap}
	}
}

func (s *scriptedStream) finish()          { s.events <- streamEvent{err: io.EOF} }
func (s *scriptedStream) failWith(e error) { s.events <- streamEvent{err: e} }

// =============================================================================
// FLAKY STORE
// =============================================================================

// flakyStore fails message inserts while failInserts is set. While held is
// set, an insert announces itself on entered and returns whatever the test
// sends on held.
type flakyStore struct {
	storage.Store
	failInserts atomic.Bool

	mu      sync.Mutex
	held    chan error
	entered chan struct{}
}

var errDiskFull = errors.New("disk full")

// hold makes the next insert block until release is called.
func (s *flakyStore) hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(chan error, 1)
	s.entered = make(chan struct{}, 1)
}

// waitEntered blocks until an insert is being held.
func (s *flakyStore) waitEntered(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	entered := s.entered
	s.mu.Unlock()
	select {
	case <-entered:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the message insert")
	}
}

// release lets the held insert finish with err.
func (s *flakyStore) release(err error) {
	s.mu.Lock()
	held := s.held
	s.held = nil
	s.mu.Unlock()
	held <- err
}

func (s *flakyStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	held, entered := s.held, s.entered
	s.mu.Unlock()
	if held != nil {
		entered <- struct{}{}
		return <-held
	}
	if s.failInserts.Load() {
		return &storage.StorageError{Op: "insert message", Err: errDiskFull}
	}
	return s.Store.InsertMessage(ctx, msg)
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	t       *testing.T
	mgr     *Manager
	gw      *scriptedGateway
	store   *flakyStore
	updates <-chan Update
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "iris.db"))
	require.NoError(t, err)
	store := &flakyStore{Store: db}
	gw := newScriptedGateway()

	mgr := NewManager(context.Background(), store, gw, Config{})
	updates, unsubscribe := mgr.Subscribe()
	t.Cleanup(func() {
		unsubscribe()
		mgr.Close()
		db.Close()
	})

	return &harness{t: t, mgr: mgr, gw: gw, store: store, updates: updates}
}

func (h *harness) newConversation() string {
	h.t.Helper()
	conv, err := h.mgr.NewConversation(context.Background())
	require.NoError(h.t, err)
	return conv.ID
}

// stored loads the conversation straight from the store.
func (h *harness) stored(id string) *model.Conversation {
	h.t.Helper()
	conv, err := h.store.LoadConversation(context.Background(), id)
	require.NoError(h.t, err)
	return conv
}

func (h *harness) wait(ex *Exchange) Outcome {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	out, err := ex.Wait(ctx)
	require.NoError(h.t, err, "exchange did not finish")
	return out
}

// collect reads updates for conversationID until one satisfies stop.
func (h *harness) collect(conversationID string, stop func(Update) bool) []Update {
	h.t.Helper()
	var got []Update
	deadline := time.After(testTimeout)
	for {
		select {
		case u, ok := <-h.updates:
			if !ok {
				h.t.Fatal("update channel closed")
			}
			if u.ConversationID != conversationID {
				continue
			}
			got = append(got, u)
			if stop(u) {
				return got
			}
		case <-deadline:
			h.t.Fatalf("timed out collecting updates, have %+v", got)
		}
	}
}

// waitPartial blocks until the manager has published content for conversationID.
func (h *harness) waitPartial(conversationID, content string) {
	h.t.Helper()
	h.collect(conversationID, func(u Update) bool {
		return u.Kind == UpdatePartial && u.Content == content
	})
}

func untilIdleAfterTerminal(u Update) bool {
	return u.Kind == UpdateStatus && u.Status == StatusIdle
}

// statuses returns the status changes in updates, skipping snapshots.
func statuses(updates []Update) []Status {
	var out []Status
	for _, u := range updates {
		if u.Kind == UpdateStatus {
			out = append(out, u.Status)
		}
	}
	return out
}

func assistantMessages(conv *model.Conversation) []*model.Message {
	var out []*model.Message
	for _, m := range conv.Messages {
		if m.IsAssistant() {
			out = append(out, m)
		}
	}
	return out
}
