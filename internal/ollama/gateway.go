// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"context"

	"github.com/jeranaias/iris/internal/gateway"
)

// =============================================================================
// GATEWAY ADAPTER
// =============================================================================

// Gateway exposes a Client as a gateway.Gateway bound to one model.
type Gateway struct {
	client *Client
	model  string
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway wraps client. An empty model uses the client's default.
func NewGateway(client *Client, model string) *Gateway {
	if model == "" {
		model = client.Model()
	}
	return &Gateway{client: client, model: model}
}

// Availability maps the state of the Ollama server onto gateway reasons:
// a remote server is not on-device, a dead server is not enabled, and a
// missing model is not ready.
func (g *Gateway) Availability(ctx context.Context) gateway.Availability {
	if !gateway.IsLocalURL(g.client.BaseURL()) {
		return gateway.Unavailable(gateway.ReasonDeviceNotEligible)
	}

	if err := g.client.CheckRunning(ctx); err != nil {
		if IsNotRunning(err) || IsTimeout(err) {
			return gateway.Unavailable(gateway.ReasonCapabilityNotEnabled)
		}
		return gateway.UnavailableOther(err.Error())
	}

	ok, err := g.client.HasModel(ctx, g.model)
	if err != nil {
		return gateway.UnavailableOther(err.Error())
	}
	if !ok {
		return gateway.Unavailable(gateway.ReasonModelNotReady)
	}
	return gateway.Available
}

// Respond returns the complete reply to prompt.
func (g *Gateway) Respond(ctx context.Context, prompt, instructions string) (string, error) {
	resp, err := g.client.Chat(ctx, g.model, buildMessages(prompt, instructions))
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// StreamRespond streams the reply to prompt as cumulative snapshots.
func (g *Gateway) StreamRespond(ctx context.Context, prompt, instructions string) (gateway.Stream, error) {
	reader, err := g.client.ChatStream(ctx, g.model, buildMessages(prompt, instructions))
	if err != nil {
		return nil, err
	}
	return gateway.Accumulate(func() (string, bool, error) {
		chunk, err := reader.Next()
		if err != nil {
			return "", false, err
		}
		return chunk.Content, chunk.Done, nil
	}, reader.Close), nil
}

func buildMessages(prompt, instructions string) []Message {
	msgs := make([]Message, 0, 2)
	if instructions != "" {
		msgs = append(msgs, NewSystemMessage(instructions))
	}
	return append(msgs, NewUserMessage(prompt))
}
