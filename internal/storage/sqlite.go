// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/iris/internal/model"
)

// SQLiteStore keeps conversations in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
// The special path ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time; one connection also
	// serialises writes from concurrent conversations.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON", // required for ON DELETE CASCADE
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// =============================================================================
// WRITES
// =============================================================================

// InsertConversation stores a new conversation and any messages it already has.
func (s *SQLiteStore) InsertConversation(ctx context.Context, conv *model.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("insert conversation", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano())
	if err != nil {
		return storageErr("insert conversation", err)
	}

	for _, msg := range conv.Messages {
		if err := insertMessage(ctx, tx, conv.ID, msg); err != nil {
			return storageErr("insert conversation", err)
		}
	}

	return storageErr("insert conversation", tx.Commit())
}

// InsertMessage appends msg to its conversation.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("insert message", err)
	}
	defer tx.Rollback()

	if err := conversationExists(ctx, tx, msg.ConversationID); err != nil {
		return storageErr("insert message", err)
	}
	if err := insertMessage(ctx, tx, msg.ConversationID, msg); err != nil {
		return storageErr("insert message", err)
	}

	return storageErr("insert message", tx.Commit())
}

func insertMessage(ctx context.Context, tx *sql.Tx, convID string, msg *model.Message) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, convID, string(msg.Role), msg.Content, msg.Timestamp.UnixNano())
	return err
}

func conversationExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrConversationNotFound
	}
	return err
}

// SaveConversation writes the title and updated time.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		conv.Title, conv.UpdatedAt.UnixNano(), conv.ID)
	if err != nil {
		return storageErr("save conversation", err)
	}
	return requireRow(res, "save conversation")
}

// DeleteConversation removes a conversation; its messages go with it.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete conversation", err)
	}
	return requireRow(res, "delete conversation")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// LoadConversation returns a conversation with its messages in insertion order.
func (s *SQLiteStore) LoadConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv := &model.Conversation{ID: id}
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT title, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.Title, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, storageErr("load conversation", err)
	}
	conv.CreatedAt = time.Unix(0, created)
	conv.UpdatedAt = time.Unix(0, updated)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, timestamp FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, storageErr("load messages", err)
	}
	defer rows.Close()

	conv.Messages = make([]*model.Message, 0)
	for rows.Next() {
		msg := &model.Message{ConversationID: id}
		var role string
		var ts int64
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &ts); err != nil {
			return nil, storageErr("load messages", err)
		}
		if msg.Role, err = model.ParseRole(role); err != nil {
			return nil, storageErr("load messages", err)
		}
		msg.Timestamp = time.Unix(0, ts)
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load messages", err)
	}

	return conv, nil
}

// ListConversations returns every conversation, most recently updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]ConversationMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
		       COALESCE((SELECT m.content FROM messages m WHERE m.conversation_id = c.id
		                 ORDER BY m.seq DESC LIMIT 1), '')
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id`)
	if err != nil {
		return nil, storageErr("list conversations", err)
	}
	defer rows.Close()

	metas := make([]ConversationMeta, 0)
	for rows.Next() {
		var meta ConversationMeta
		var created, updated int64
		var last string
		if err := rows.Scan(&meta.ID, &meta.Title, &created, &updated, &meta.MessageCount, &last); err != nil {
			return nil, storageErr("list conversations", err)
		}
		meta.CreatedAt = time.Unix(0, created)
		meta.UpdatedAt = time.Unix(0, updated)
		meta.Preview = makePreview(last)
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list conversations", err)
	}
	return metas, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
