// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations and their messages.
//
// Two backends implement Store:
//
//   - SQLiteStore: a single database file (default ~/.iris/iris.db). Messages
//     reference their conversation with ON DELETE CASCADE.
//   - JSONStore: one JSON document per conversation in a directory, written
//     atomically. Deleting the document deletes the messages with it.
//
// Both serialise writes, so independent conversations may persist concurrently.
// Missing conversations are reported as ErrConversationNotFound; I/O failures
// as *StorageError.
package storage
