// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/iris/internal/model"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is durable storage for conversations and messages.
type Store interface {
	// InsertConversation stores a new conversation and any messages it already has.
	InsertConversation(ctx context.Context, conv *model.Conversation) error

	// InsertMessage appends msg to the conversation named by msg.ConversationID.
	InsertMessage(ctx context.Context, msg *model.Message) error

	// SaveConversation writes the mutable conversation fields (title, updated time).
	SaveConversation(ctx context.Context, conv *model.Conversation) error

	// DeleteConversation removes a conversation and all of its messages.
	DeleteConversation(ctx context.Context, id string) error

	// LoadConversation returns a conversation with its messages in insertion order.
	LoadConversation(ctx context.Context, id string) (*model.Conversation, error)

	// ListConversations returns every conversation, most recently updated first.
	ListConversations(ctx context.Context) ([]ConversationMeta, error)

	// Close releases the store.
	Close() error
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // last message, single line
}

// previewLength is the number of characters kept for ConversationMeta.Preview.
const previewLength = 80

func makePreview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) > previewLength {
		return string(runes[:previewLength-3]) + "..."
	}
	return content
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = errors.New("conversation not found")

// StorageError reports a failed read or write of the underlying medium.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConversationNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// OPEN
// =============================================================================

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Config selects and locates a backend.
type Config struct {
	// Backend is "sqlite" (default) or "json".
	Backend string

	// Path is the database file for sqlite or the directory for json.
	Path string
}

// Open creates the store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case BackendJSON:
		return NewJSONStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
