// iris - A terminal chat client for local language models.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/iris/internal/cli"
	"github.com/jeranaias/iris/internal/config"
	"github.com/jeranaias/iris/internal/logging"
	"github.com/jeranaias/iris/internal/ui/chat"
	"github.com/jeranaias/iris/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if cmd != cli.CmdTUI {
		os.Exit(cli.Run(ctx, cmd, args))
	}
	if err := runTUI(ctx, args); err != nil {
		cli.DisplayError(os.Stderr, err, false)
		os.Exit(cli.GetExitCode(err))
	}
}

// runTUI starts the full-screen interface. Logs go to a file so they do not
// corrupt the screen.
func runTUI(ctx context.Context, args cli.Args) error {
	cfg, err := cli.LoadConfig(args)
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if path, err := cfg.LogPath(); err == nil {
		if logFile, err := logging.OpenFile(path); err == nil {
			defer logFile.Close()
			logOut = logFile
		}
	}

	rt, err := cli.Open(ctx, cfg, cli.Options{LogOutput: logOut})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.Logger.Warn().Err(cerr).Msg("shutdown")
		}
	}()

	theme := styles.NewTheme(cfg.UI.Theme)
	model := chat.New(rt.Manager, theme, chat.Options{
		ModelName:    modelLabel(cfg),
		CheckTimeout: cfg.RequestTimeout(),
		PlainText:    !cfg.UI.Markdown,
	})
	defer model.Close()

	p := tea.NewProgram(model,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
		tea.WithContext(ctx),
	)

	rt.Logger.Info().Str("backend", cfg.Gateway.Backend).Msg("tui started")
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func modelLabel(cfg *config.Config) string {
	if cfg.Gateway.Model == "" {
		return cfg.Gateway.Backend
	}
	return cfg.Gateway.Model
}
