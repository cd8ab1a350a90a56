// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This is the default iris backend. The Client speaks the /api/chat and
// /api/tags endpoints of a local Ollama server; Gateway adapts it to
// gateway.Gateway so the session manager can drive it.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - StreamReader: newline-delimited JSON reader for streaming chat
//   - Gateway: gateway.Gateway adapter with availability mapping
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{Model: "llama3.2"})
//	gw := ollama.NewGateway(client, "")
//	if a := gw.Availability(ctx); !a.IsAvailable() {
//	    fmt.Println(a.Description())
//	}
package ollama
