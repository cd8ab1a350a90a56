// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway defines the contract between iris and a local language model.
//
// A Gateway reports whether the model can be used right now (Availability) and
// answers prompts either in one shot (Respond) or as a Stream of cumulative
// snapshots (StreamRespond). Every snapshot is the whole reply so far, never a
// delta: consumers replace what they display with each one.
//
// Backends live in their own packages (ollama, openai). They usually read
// deltas off the wire and use Accumulate to turn them into snapshots.
//
// Usage:
//
//	s, err := gw.StreamRespond(ctx, "Hello", gateway.DefaultInstructions)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	for {
//	    snapshot, err := s.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    render(snapshot)
//	}
package gateway
