// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/iris/internal/config"
	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/logging"
	"github.com/jeranaias/iris/internal/ollama"
	"github.com/jeranaias/iris/internal/openai"
	"github.com/jeranaias/iris/internal/session"
	"github.com/jeranaias/iris/internal/storage"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// LoadConfig loads the configuration (from --config if given) and applies
// command-line overrides on top of it.
func LoadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.Config != "" {
		cfg, err = config.LoadFromPath(args.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if args.Backend != "" {
		cfg.Gateway.Backend = strings.ToLower(args.Backend)
	}
	if args.Model != "" {
		cfg.Gateway.Model = args.Model
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewGateway builds the language model backend selected by cfg.
func NewGateway(cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.Gateway.Backend {
	case config.BackendOllama:
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL: cfg.Gateway.OllamaURL,
			Timeout: cfg.RequestTimeout(),
			Model:   cfg.Gateway.Model,
		})
		return ollama.NewGateway(client, cfg.Gateway.Model), nil
	case config.BackendOpenAI:
		return openai.New(openai.Config{
			BaseURL: cfg.Gateway.OpenAIBaseURL,
			APIKey:  cfg.Gateway.OpenAIAPIKey,
			Model:   cfg.Gateway.Model,
			Timeout: cfg.RequestTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown gateway backend %q", cfg.Gateway.Backend)
	}
}

// =============================================================================
// RUNTIME
// =============================================================================

// Runtime bundles everything a command needs: configuration, logger, store,
// gateway and the session manager.
type Runtime struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   storage.Store
	Gateway gateway.Gateway
	Manager *session.Manager

	// In answers confirmations. Out receives command output, Err diagnostics.
	In  io.Reader
	Out io.Writer
	Err io.Writer

	closers []func() error
}

// Options customise Open.
type Options struct {
	// LogOutput receives log lines (default: Err).
	LogOutput io.Writer

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Gateway replaces the backend selected by the config.
	Gateway gateway.Gateway

	// Store replaces the store described by the config. The runtime closes it.
	Store storage.Store
}

// Open wires the store, gateway and session manager described by cfg. The
// manager performs its first availability check before Open returns.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.LogOutput == nil {
		opts.LogOutput = opts.Err
	}

	rt := &Runtime{
		Config: cfg,
		Logger: logging.New(cfg.Log.Level, cfg.Log.Format, opts.LogOutput),
		In:     opts.In,
		Out:    opts.Out,
		Err:    opts.Err,
	}

	storeCfg, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	store := opts.Store
	if store == nil {
		store, err = storage.Open(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open conversation store: %w", err)
		}
	}
	rt.Store = store
	rt.closers = append(rt.closers, store.Close)

	rt.Gateway = opts.Gateway
	if rt.Gateway == nil {
		gw, err := NewGateway(cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
		rt.Gateway = gw
	}

	rt.Logger.Debug().
		Str("backend", cfg.Gateway.Backend).
		Str("model", cfg.Gateway.Model).
		Str("storage", storeCfg.Backend).
		Str("path", storeCfg.Path).
		Msg("runtime opened")

	rt.Manager = session.NewManager(ctx, store, rt.Gateway, session.Config{
		Instructions: cfg.Gateway.Instructions,
		Logger:       &rt.Logger,
	})
	// Manager first so in-flight replies settle before the store closes.
	rt.closers = append([]func() error{rt.Manager.Close}, rt.closers...)
	return rt, nil
}

// AddCloser registers fn to run when the runtime closes, after the manager
// and store.
func (r *Runtime) AddCloser(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Close shuts down the manager and store.
func (r *Runtime) Close() error {
	var errs []error
	for _, fn := range r.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// =============================================================================
// CONVERSATION LOOKUP
// =============================================================================

// ResolveConversation expands an abbreviated conversation ID to the full ID.
// An exact match always wins.
func (r *Runtime) ResolveConversation(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", &NotFoundError{Resource: "conversation", ID: "(empty)"}
	}

	metas, err := r.Manager.Conversations(ctx)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, m := range metas {
		if m.ID == idOrPrefix {
			return m.ID, nil
		}
		if strings.HasPrefix(m.ID, idOrPrefix) {
			matches = append(matches, m.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Resource: "conversation", ID: idOrPrefix}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Prefix: idOrPrefix, Matches: len(matches)}
	}
}
