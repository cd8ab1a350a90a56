// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
)

// handlerFunc runs a command that needs the store and the model.
type handlerFunc func(ctx context.Context, rt *Runtime, args Args) error

var handlers = map[Command]handlerFunc{
	CmdChat:   HandleChat,
	CmdAsk:    HandleAsk,
	CmdList:   HandleList,
	CmdNew:    HandleNew,
	CmdShow:   HandleShow,
	CmdDelete: HandleDelete,
	CmdStatus: HandleStatus,
}

// Run executes a non-TUI command against stdout/stderr, prints any error and
// returns the process exit code.
func Run(ctx context.Context, cmd Command, args Args) int {
	err := Execute(ctx, cmd, args, Options{})
	if err != nil {
		DisplayError(os.Stderr, err, args.JSON)
	}
	return GetExitCode(err)
}

// Execute runs cmd. Commands that talk to the model or the store get a
// Runtime built from the loaded config; opts customises it.
func Execute(ctx context.Context, cmd Command, args Args, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	switch cmd {
	case CmdHelp:
		if args.Unknown != "" {
			PrintUsage(opts.Err)
			return &UsageError{Command: args.Unknown, Reason: "unknown command"}
		}
		PrintUsage(opts.Out)
		return nil
	case CmdVersion:
		PrintVersion(opts.Out)
		return nil
	case CmdConfig:
		return HandleConfig(opts.Out, args)
	}

	handler, ok := handlers[cmd]
	if !ok {
		return usageError(cmd, "not available from this entry point")
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	rt, err := Open(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.Logger.Warn().Err(cerr).Msg("shutdown")
		}
	}()
	return handler(ctx, rt, args)
}
