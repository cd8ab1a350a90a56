// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func drain(t *testing.T, ch <-chan Update, n int) []Update {
	t.Helper()
	var got []Update
	for len(got) < n {
		select {
		case u, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, u)
		case <-time.After(testTimeout):
			t.Fatalf("timed out after %d of %d updates", len(got), n)
		}
	}
	return got
}

func TestSubscriber_CoalescesQueuedSnapshots(t *testing.T) {
	s := newSubscriber()
	defer s.stop()

	s.push(Update{Kind: UpdateStatus, ConversationID: "a", Status: StatusStreaming})
	s.push(Update{Kind: UpdatePartial, ConversationID: "a", Content: "H"})
	s.push(Update{Kind: UpdatePartial, ConversationID: "a", Content: "He"})
	s.push(Update{Kind: UpdatePartial, ConversationID: "a", Content: "Hello"})
	s.push(Update{Kind: UpdateStatus, ConversationID: "a", Status: StatusCompleted})
	s.finish()

	got := drain(t, s.out, 5)
	if assert.Len(t, got, 3) {
		assert.Equal(t, StatusStreaming, got[0].Status)
		assert.Equal(t, "Hello", got[1].Content)
		assert.Equal(t, StatusCompleted, got[2].Status)
	}
}

func TestSubscriber_KeepsSnapshotsOfOtherConversations(t *testing.T) {
	s := newSubscriber()
	defer s.stop()

	// Hold the pump on a first update so the rest stays queued.
	s.push(Update{Kind: UpdateStatus, ConversationID: "x"})
	s.push(Update{Kind: UpdatePartial, ConversationID: "a", Content: "a1"})
	s.push(Update{Kind: UpdatePartial, ConversationID: "b", Content: "b1"})
	s.push(Update{Kind: UpdatePartial, ConversationID: "a", Content: "a2"})
	s.finish()

	got := drain(t, s.out, 4)
	var contents []string
	for _, u := range got[1:] {
		contents = append(contents, u.Content)
	}
	assert.Equal(t, []string{"a1", "b1", "a2"}, contents)
}

func TestSubscriber_StatusNeverDropped(t *testing.T) {
	s := newSubscriber()
	defer s.stop()

	const n = 500
	for i := 0; i < n; i++ {
		s.push(Update{Kind: UpdateStatus, ConversationID: "a", Status: StatusIdle})
	}
	s.finish()

	assert.Len(t, drain(t, s.out, n+1), n)
}

func TestSubscriber_StopClosesChannel(t *testing.T) {
	s := newSubscriber()
	s.push(Update{Kind: UpdateStatus})
	s.stop()
	s.stop()

	select {
	case _, ok := <-s.out:
		if ok {
			// The pump may have been mid-send; the next receive sees the close.
			_, ok = <-s.out
		}
		assert.False(t, ok)
	case <-time.After(testTimeout):
		t.Fatal("channel not closed after stop")
	}
}
