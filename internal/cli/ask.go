// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/session"
)

// AskJSON is the --json form of a one-shot answer.
type AskJSON struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
	Model  string `json:"model,omitempty"`
}

// HandleAsk sends a single prompt with Respond and prints the reply. With
// --stream the reply is printed as it arrives instead. Nothing is saved.
func HandleAsk(ctx context.Context, rt *Runtime, args Args) error {
	prompt := strings.TrimSpace(args.Query)
	if prompt == "" {
		return usageError(CmdAsk, "a question is required, e.g. iris ask \"what is a goroutine?\"")
	}

	if avail := rt.Gateway.Availability(ctx); !avail.IsAvailable() {
		return &session.Error{Kind: session.KindUnavailable, Message: avail.Description(), Availability: avail}
	}

	if args.Stream {
		return askStreaming(ctx, rt, prompt, args.JSON)
	}

	answer, err := rt.Gateway.Respond(ctx, prompt, rt.Config.Gateway.Instructions)
	if err != nil {
		return askError(err)
	}
	rt.Logger.Debug().Int("chars", len(answer)).Msg("ask answered")

	if args.JSON {
		return outputJSON(rt.Out, AskJSON{Prompt: prompt, Answer: answer, Model: rt.Config.Gateway.Model})
	}
	fmt.Fprint(rt.Out, newRenderer(rt.Out, rt.Config.UI.Markdown).Render(answer))
	return nil
}

// askStreaming answers prompt through StreamRespond. Streams are not bound
// by the request timeout, so long answers finish even in --json mode, where
// the whole reply is collected before printing.
func askStreaming(ctx context.Context, rt *Runtime, prompt string, jsonMode bool) error {
	stream, err := rt.Gateway.StreamRespond(ctx, prompt, rt.Config.Gateway.Instructions)
	if err != nil {
		return askError(err)
	}

	if jsonMode {
		answer, err := gateway.Collect(stream)
		if err != nil {
			return askError(err)
		}
		return outputJSON(rt.Out, AskJSON{Prompt: prompt, Answer: answer, Model: rt.Config.Gateway.Model})
	}

	defer stream.Close()
	printer := &deltaPrinter{}
	for {
		snapshot, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			printer.Finish(rt.Out)
			return askError(err)
		}
		printer.Print(rt.Out, snapshot)
	}
	rt.Logger.Debug().Int("chars", len(printer.Shown())).Msg("ask answered")
	printer.Finish(rt.Out)
	return nil
}

func askError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &session.Error{Kind: session.KindGateway, Message: "Failed to get response: " + err.Error(), Cause: err}
}

// =============================================================================
// DELTA PRINTER
// =============================================================================

// deltaPrinter writes cumulative snapshots as they grow, printing only the
// text not yet shown. A snapshot that rewrites earlier text (rather than
// extending it) is printed on a fresh line in full.
type deltaPrinter struct {
	shown string
}

// Print writes the part of snapshot not already on screen.
func (p *deltaPrinter) Print(w io.Writer, snapshot string) {
	if strings.HasPrefix(snapshot, p.shown) {
		fmt.Fprint(w, snapshot[len(p.shown):])
	} else {
		fmt.Fprint(w, "\n"+snapshot)
	}
	p.shown = snapshot
}

// Finish ends the reply with a newline if anything was printed.
func (p *deltaPrinter) Finish(w io.Writer) {
	if p.shown != "" && !strings.HasSuffix(p.shown, "\n") {
		fmt.Fprintln(w)
	}
	p.shown = ""
}

// Shown returns everything printed since the last Finish.
func (p *deltaPrinter) Shown() string {
	return p.shown
}
