// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-interactive commands of iris and the
// line-mode chat REPL.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - Runtime: The config, logger, store, gateway and session manager a command runs against
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	if cmd == cli.CmdTUI {
//	    // start the bubbletea program
//	}
//	os.Exit(cli.Run(ctx, cmd, args))
//
// # Commands
//
//   - chat: Line-mode chat with input history; Ctrl+C stops a reply
//   - ask: One question, one answer, nothing saved
//   - list, new, show, delete: Conversation management
//   - status: Model availability and storage location
//   - config: Show, initialise and edit the config file
//
// Conversation IDs may be abbreviated to any unique prefix. Most commands
// accept --json for scripting; errors are then reported as JSON too.
package cli
