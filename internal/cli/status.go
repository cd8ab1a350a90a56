// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
)

// StatusJSON is the --json form of the status command.
type StatusJSON struct {
	Available     bool   `json:"available"`
	Reason        string `json:"reason"`
	Description   string `json:"description"`
	Backend       string `json:"backend"`
	Model         string `json:"model,omitempty"`
	Storage       string `json:"storage"`
	StoragePath   string `json:"storage_path"`
	Conversations int    `json:"conversations"`
}

// HandleStatus reports whether the model can answer prompts, plus where
// conversations are kept. It re-checks availability rather than trusting the
// check made at startup.
func HandleStatus(ctx context.Context, rt *Runtime, args Args) error {
	avail := rt.Manager.CheckAvailability(ctx)
	cfg := rt.Config

	storagePath, err := cfg.StoragePath()
	if err != nil {
		return err
	}
	count := 0
	if metas, err := rt.Manager.Conversations(ctx); err == nil {
		count = len(metas)
	} else {
		rt.Logger.Warn().Err(err).Msg("could not count conversations")
	}

	if args.JSON {
		return outputJSON(rt.Out, StatusJSON{
			Available:     avail.IsAvailable(),
			Reason:        avail.Reason.String(),
			Description:   avail.Description(),
			Backend:       cfg.Gateway.Backend,
			Model:         cfg.Gateway.Model,
			Storage:       cfg.Storage.Backend,
			StoragePath:   storagePath,
			Conversations: count,
		})
	}

	model := cfg.Gateway.Model
	if model == "" {
		model = "(server default)"
	}

	fmt.Fprintln(rt.Out, TitleStyle.Render("iris status"))
	fmt.Fprintln(rt.Out, RenderSeparator(40))
	if avail.IsAvailable() {
		fmt.Fprintln(rt.Out, RenderLabel("Model", SuccessStyle.Render("[OK] ")+avail.Description()))
	} else {
		fmt.Fprintln(rt.Out, RenderLabel("Model", ErrorStyle.Render("[X] ")+avail.Description()))
	}
	fmt.Fprintln(rt.Out, RenderLabel("Backend", cfg.Gateway.Backend))
	fmt.Fprintln(rt.Out, RenderLabel("Model name", model))
	fmt.Fprintln(rt.Out, RenderLabel("Storage", fmt.Sprintf("%s (%s)", storagePath, cfg.Storage.Backend)))
	fmt.Fprintln(rt.Out, RenderLabel("Conversations", fmt.Sprintf("%d", count)))
	return nil
}
