// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai adapts OpenAI-compatible local servers (llama.cpp server,
// LM Studio, vLLM, Ollama's /v1 endpoint) to gateway.Gateway.
//
// Only loopback base URLs are considered eligible: iris keeps inference on
// the device, so a hosted API reports ReasonDeviceNotEligible.
package openai
