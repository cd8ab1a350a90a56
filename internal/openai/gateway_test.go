// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/iris/internal/gateway"
)

// fakeLLM serves /v1/models and /v1/chat/completions the way llama.cpp does,
// and records the model named in each completion request.
type fakeLLM struct {
	*httptest.Server

	mu        sync.Mutex
	requested []string
}

func (f *fakeLLM) requestedModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

func fakeServer(t *testing.T, models []string, deltas []string) *fakeLLM {
	f := &fakeLLM{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]string, 0, len(models))
		for _, id := range models {
			data = append(data, map[string]string{"id": id, "object": "model"})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		f.mu.Lock()
		f.requested = append(f.requested, req.Model)
		f.mu.Unlock()

		if !req.Stream {
			var full string
			for _, d := range deltas {
				full += d
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": full},
					"finish_reason": "stop",
				}},
			})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			chunk, _ := json.Marshal(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion.chunk",
				"choices": []map[string]any{{
					"index": 0,
					"delta": map[string]string{"content": d},
				}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func TestStreamRespond_Snapshots(t *testing.T) {
	srv := fakeServer(t, []string{"local"}, []string{"H", "e", "llo"})
	g := New(Config{BaseURL: srv.URL + "/v1", Model: "local"})

	s, err := g.StreamRespond(context.Background(), "Hi", gateway.DefaultInstructions)
	require.NoError(t, err)
	defer s.Close()

	var snaps []string
	for {
		snap, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		snaps = append(snaps, snap)
	}

	assert.Equal(t, []string{"H", "He", "Hello"}, snaps)
}

func TestRespond(t *testing.T) {
	srv := fakeServer(t, []string{"local"}, []string{"Hel", "lo"})
	g := New(Config{BaseURL: srv.URL + "/v1", Model: "local"})

	got, err := g.Respond(context.Background(), "Hi", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestRequest_ConfiguredModel(t *testing.T) {
	srv := fakeServer(t, []string{"a", "b"}, []string{"ok"})
	g := New(Config{BaseURL: srv.URL + "/v1", Model: "b"})

	_, err := g.Respond(context.Background(), "Hi", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, srv.requestedModels())
}

func TestRequest_EmptyModelUsesFirstListed(t *testing.T) {
	ctx := context.Background()
	srv := fakeServer(t, []string{"qwen2.5-7b", "other"}, []string{"ok"})
	g := New(Config{BaseURL: srv.URL + "/v1"})

	require.True(t, g.Availability(ctx).IsAvailable())
	_, err := g.Respond(ctx, "Hi", "")
	require.NoError(t, err)

	s, err := g.StreamRespond(ctx, "Hi", "")
	require.NoError(t, err)
	_, err = gateway.Collect(s)
	require.NoError(t, err)

	assert.Equal(t, []string{"qwen2.5-7b", "qwen2.5-7b"}, srv.requestedModels())
}

func TestRequest_EmptyModelWithoutCheck(t *testing.T) {
	srv := fakeServer(t, []string{"only"}, []string{"ok"})
	g := New(Config{BaseURL: srv.URL + "/v1"})

	_, err := g.Respond(context.Background(), "Hi", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, srv.requestedModels())
}

func TestRequest_NoModelLoaded(t *testing.T) {
	srv := fakeServer(t, nil, []string{"ok"})
	g := New(Config{BaseURL: srv.URL + "/v1"})

	_, err := g.Respond(context.Background(), "Hi", "")
	assert.ErrorContains(t, err, "no model loaded")
	assert.Empty(t, srv.requestedModels())
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		models []string
		model  string
		want   gateway.Reason
	}{
		{"configured model loaded", []string{"a", "b"}, "b", gateway.ReasonNone},
		{"any model accepted", []string{"a"}, "", gateway.ReasonNone},
		{"configured model missing", []string{"a"}, "b", gateway.ReasonModelNotReady},
		{"nothing loaded", nil, "", gateway.ReasonModelNotReady},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeServer(t, tc.models, nil)
			g := New(Config{BaseURL: srv.URL + "/v1", Model: tc.model})
			if got := g.Availability(ctx).Reason; got != tc.want {
				t.Errorf("Availability().Reason = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAvailability_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	g := New(Config{BaseURL: srv.URL + "/v1"})
	assert.Equal(t, gateway.ReasonCapabilityNotEnabled, g.Availability(context.Background()).Reason)
}

func TestAvailability_HostedAPI(t *testing.T) {
	g := New(Config{BaseURL: "https://api.openai.com/v1", APIKey: "sk-test"})
	assert.Equal(t, gateway.ReasonDeviceNotEligible, g.Availability(context.Background()).Reason)
}
