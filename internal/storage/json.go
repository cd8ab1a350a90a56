// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/iris/internal/model"
	"github.com/jeranaias/iris/internal/util"
)

// JSONStore keeps one JSON document per conversation under BaseDir.
type JSONStore struct {
	// BaseDir is the directory for storing conversations.
	// Default: ~/.iris/conversations/
	BaseDir string

	mu sync.Mutex
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore creates a store in baseDir, creating the directory if needed.
func NewJSONStore(baseDir string) (*JSONStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("json store: empty directory")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	return &JSONStore{BaseDir: baseDir}, nil
}

// =============================================================================
// WRITES
// =============================================================================

// InsertConversation stores a new conversation and any messages it already has.
func (s *JSONStore) InsertConversation(ctx context.Context, conv *model.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.filePath(conv.ID)); err == nil {
		return &StorageError{Op: "insert conversation", Err: fmt.Errorf("conversation %s already exists", conv.ID)}
	}
	return storageErr("insert conversation", s.write(conv))
}

// InsertMessage appends msg to its conversation.
func (s *JSONStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(msg.ConversationID)
	if err != nil {
		return storageErr("insert message", err)
	}
	m := *msg
	conv.Messages = append(conv.Messages, &m)
	return storageErr("insert message", s.write(conv))
}

// SaveConversation writes the title and updated time, keeping stored messages.
func (s *JSONStore) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read(conv.ID)
	if err != nil {
		return storageErr("save conversation", err)
	}
	stored.Title = conv.Title
	stored.UpdatedAt = conv.UpdatedAt
	return storageErr("save conversation", s.write(stored))
}

// DeleteConversation removes the conversation document and with it every message.
func (s *JSONStore) DeleteConversation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrConversationNotFound
		}
		return storageErr("delete conversation", err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// LoadConversation returns a conversation with its messages in insertion order.
func (s *JSONStore) LoadConversation(ctx context.Context, id string) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(id)
	if err != nil {
		return nil, storageErr("load conversation", err)
	}
	return conv, nil
}

// ListConversations returns every conversation, most recently updated first.
// Unreadable documents are skipped.
func (s *JSONStore) ListConversations(ctx context.Context) ([]ConversationMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, storageErr("list conversations", err)
	}

	metas := make([]ConversationMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		conv, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // Skip corrupted files
		}

		meta := ConversationMeta{
			ID:           conv.ID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		}
		if last := conv.LastMessage(); last != nil {
			meta.Preview = makePreview(last.Content)
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// Close is a no-op; every write is already on disk.
func (s *JSONStore) Close() error {
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a conversation ID.
func (s *JSONStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, filepath.Base(id)+".json")
}

func (s *JSONStore) read(id string) (*model.Conversation, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	if conv.Messages == nil {
		conv.Messages = make([]*model.Message, 0)
	}
	for _, msg := range conv.Messages {
		if !msg.Role.IsValid() {
			return nil, fmt.Errorf("message %s: unknown role %q", msg.ID, msg.Role)
		}
		msg.ConversationID = conv.ID
	}
	return &conv, nil
}

func (s *JSONStore) write(conv *model.Conversation) error {
	return util.WriteFileAtomic(s.filePath(conv.ID), util.PrivatePerms, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(conv)
	})
}
