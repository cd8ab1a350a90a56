// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/iris/internal/gateway"
)

// DefaultBaseURL is the address llama.cpp's server listens on.
const DefaultBaseURL = "http://127.0.0.1:8080/v1"

// Config configures the adapter.
type Config struct {
	// BaseURL of the OpenAI-compatible API, including the /v1 suffix.
	BaseURL string

	// APIKey is sent as a bearer token. Most local servers ignore it.
	APIKey string

	// Model to request. Empty uses the first model the server lists.
	Model string

	// Timeout for non-streaming requests. Streaming is bounded by its context.
	Timeout time.Duration
}

// Gateway talks to an OpenAI-compatible server through go-openai.
type Gateway struct {
	client  *goopenai.Client
	stream  *goopenai.Client
	baseURL string
	model   string

	mu         sync.Mutex
	discovered string
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a Gateway from cfg, filling defaults for zero values.
func New(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &Gateway{
		client:  newClient(cfg, &http.Client{Timeout: cfg.Timeout}),
		stream:  newClient(cfg, &http.Client{}),
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

func newClient(cfg Config, hc *http.Client) *goopenai.Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = hc
	return goopenai.NewClientWithConfig(oc)
}

// Availability reports whether the server is local, reachable, and serving the model.
func (g *Gateway) Availability(ctx context.Context) gateway.Availability {
	if !gateway.IsLocalURL(g.baseURL) {
		return gateway.Unavailable(gateway.ReasonDeviceNotEligible)
	}

	list, err := g.client.ListModels(ctx)
	if err != nil {
		var apiErr *goopenai.APIError
		var reqErr *goopenai.RequestError
		if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
			return gateway.UnavailableOther(err.Error())
		}
		// The server never answered.
		return gateway.Unavailable(gateway.ReasonCapabilityNotEnabled)
	}

	if len(list.Models) == 0 {
		return gateway.Unavailable(gateway.ReasonModelNotReady)
	}
	if g.model == "" {
		g.setDiscovered(list.Models[0].ID)
		return gateway.Available
	}
	for _, m := range list.Models {
		if m.ID == g.model {
			return gateway.Available
		}
	}
	return gateway.Unavailable(gateway.ReasonModelNotReady)
}

// Respond returns the complete reply to prompt.
func (g *Gateway) Respond(ctx context.Context, prompt, instructions string) (string, error) {
	req, err := g.request(ctx, prompt, instructions, false)
	if err != nil {
		return "", err
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: server returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamRespond streams the reply to prompt as cumulative snapshots.
func (g *Gateway) StreamRespond(ctx context.Context, prompt, instructions string) (gateway.Stream, error) {
	req, err := g.request(ctx, prompt, instructions, true)
	if err != nil {
		return nil, err
	}
	stream, err := g.stream.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}

	next := func() (string, bool, error) {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", true, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			return "", false, fmt.Errorf("chat completion stream: %w", err)
		}
		var delta string
		for _, choice := range resp.Choices {
			delta += choice.Delta.Content
		}
		return delta, false, nil
	}
	closeFn := func() error {
		stream.Close()
		return nil
	}
	return gateway.Accumulate(next, closeFn), nil
}

func (g *Gateway) setDiscovered(id string) {
	g.mu.Lock()
	g.discovered = id
	g.mu.Unlock()
}

// modelName returns the configured model, or the one the server lists first.
// The server is asked when no availability check has found one yet.
func (g *Gateway) modelName(ctx context.Context) (string, error) {
	if g.model != "" {
		return g.model, nil
	}
	g.mu.Lock()
	id := g.discovered
	g.mu.Unlock()
	if id != "" {
		return id, nil
	}

	list, err := g.client.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	if len(list.Models) == 0 {
		return "", errors.New("list models: server has no model loaded")
	}
	g.setDiscovered(list.Models[0].ID)
	return list.Models[0].ID, nil
}

func (g *Gateway) request(ctx context.Context, prompt, instructions string, stream bool) (goopenai.ChatCompletionRequest, error) {
	model, err := g.modelName(ctx)
	if err != nil {
		return goopenai.ChatCompletionRequest{}, err
	}

	msgs := make([]goopenai.ChatCompletionMessage, 0, 2)
	if instructions != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})
	return goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   stream,
	}, nil
}
