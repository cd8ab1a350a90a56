// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdList
	CmdNew
	CmdShow
	CmdDelete
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdList:
		return "list"
	case CmdNew:
		return "new"
	case CmdShow:
		return "show"
	case CmdDelete:
		return "delete"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model   string
	Backend string
	Config  string // explicit config file
	Quiet   bool
	Verbose bool
	JSON    bool

	// Command-specific
	Query          string
	ConversationID string
	Subcommand     string
	ConfigKey      string
	ConfigVal      string
	Force          bool
	Stream         bool
	Limit          int

	// Raw args after the command name
	Raw []string

	// Unknown is set when the command name was not recognised.
	Unknown string
}

const usageText = `iris - chat with a language model running on this machine

Usage:
  iris                          Start the TUI (default)
  iris chat [--conversation ID] Interactive chat in the terminal
  iris ask "question" [--stream] Ask a single question (nothing is saved)
  iris list [--limit N]         List conversations, most recent first
  iris new                      Create an empty conversation
  iris show ID                  Print a conversation
  iris delete ID [--force]      Delete a conversation and its messages
  iris status                   Show model availability
  iris config [show|path|init|get KEY|set KEY VALUE]
  iris version                  Show version information

Global flags:
  -m, --model NAME     Model to use (overrides config)
  --backend NAME       Gateway backend: ollama or openai
  --config PATH        Use this config file (.toml or .json)
  --json               Machine-readable output (list, show, status, config show)
  -q, --quiet          Minimal output
  -v, --verbose        Debug logging

Conversation IDs may be abbreviated to any unique prefix.

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "iris version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// globalBooleans are flags that never take a value.
var globalBooleans = []string{"json", "quiet", "q", "verbose", "v", "force", "f", "stream", "help", "h", "version"}

// Parse parses command-line arguments (without the program name) and
// returns the command and its arguments.
func Parse(argv []string) (Command, Args) {
	p := NewArgParser(argv, globalBooleans...)

	args := Args{
		Model:   p.Flag("model", "m"),
		Backend: p.Flag("backend"),
		Config:  p.Flag("config"),
		Quiet:   p.BoolFlag("quiet", "q"),
		Verbose: p.BoolFlag("verbose", "v"),
		JSON:    p.BoolFlag("json"),
		Force:   p.BoolFlag("force", "f"),
		Stream:  p.BoolFlag("stream"),

		ConversationID: p.Flag("conversation", "c"),
	}
	if n, err := parsePositiveInt(p.Flag("limit", "n")); err == nil {
		args.Limit = n
	}

	if p.BoolFlag("help", "h") {
		return CmdHelp, args
	}
	if p.BoolFlag("version") {
		return CmdVersion, args
	}

	if p.PositionalCount() == 0 {
		return CmdTUI, args
	}

	name := strings.ToLower(p.Subcommand())
	args.Raw = p.PositionalFrom(1)

	switch name {
	case "tui":
		return CmdTUI, args

	case "chat":
		if args.ConversationID == "" {
			args.ConversationID = p.Positional(1)
		}
		return CmdChat, args

	case "ask":
		args.Query = JoinPositionalArgs(p, 1)
		return CmdAsk, args

	case "list", "ls":
		return CmdList, args

	case "new":
		return CmdNew, args

	case "show":
		args.ConversationID = p.Positional(1)
		return CmdShow, args

	case "delete", "rm":
		args.ConversationID = p.Positional(1)
		return CmdDelete, args

	case "status", "s":
		return CmdStatus, args

	case "config":
		args.Subcommand = strings.ToLower(p.Positional(1))
		args.ConfigKey = p.Positional(2)
		args.ConfigVal = JoinPositionalArgs(p, 3)
		return CmdConfig, args

	case "version":
		return CmdVersion, args

	case "help":
		return CmdHelp, args

	default:
		args.Unknown = name
		return CmdHelp, args
	}
}
