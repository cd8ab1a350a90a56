// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by iris packages.
//
//   - WriteFileAtomic: crash-safe file replacement with fsync and rename
//   - RelativeTime: "5m ago" style timestamps for conversation lists
//   - TruncateWidth / PadWidth: display-width aware text fitting for tables and rows
package util
