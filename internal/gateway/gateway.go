// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"io"
	"strings"
)

// DefaultInstructions are sent alongside every prompt unless configured otherwise.
const DefaultInstructions = "You are a helpful and friendly AI assistant.\n" +
	"Provide clear, concise, and accurate responses.\n" +
	"Be conversational and engaging."

// Gateway is a language model that may or may not be usable right now.
type Gateway interface {
	// Availability reports whether the model can answer prompts.
	Availability(ctx context.Context) Availability

	// Respond returns the complete reply to prompt.
	Respond(ctx context.Context, prompt, instructions string) (string, error)

	// StreamRespond starts a reply and returns a Stream of cumulative snapshots.
	// Cancelling ctx aborts the stream.
	StreamRespond(ctx context.Context, prompt, instructions string) (Stream, error)
}

// Stream is a finite sequence of cumulative content snapshots.
type Stream interface {
	// Next returns the next snapshot. It returns io.EOF once the reply is
	// complete; any other error is terminal.
	Next() (string, error)

	// Close releases the underlying connection. It is safe to call more than once.
	Close() error
}

// =============================================================================
// ACCUMULATE
// =============================================================================

// DeltaFunc yields the next piece of a reply. done reports that the reply is
// finished; the delta returned alongside done may still carry text.
type DeltaFunc func() (delta string, done bool, err error)

// Accumulate adapts a delta source into a Stream of cumulative snapshots.
// closeFn, if non-nil, is called once by Close.
func Accumulate(next DeltaFunc, closeFn func() error) Stream {
	return &accumulator{next: next, closeFn: closeFn}
}

type accumulator struct {
	next    DeltaFunc
	closeFn func() error
	buf     strings.Builder
	done    bool
	closed  bool
}

func (a *accumulator) Next() (string, error) {
	for {
		if a.done {
			return "", io.EOF
		}
		delta, done, err := a.next()
		if err != nil {
			return "", err
		}
		a.done = done
		if delta == "" {
			// Nothing new to show; keep reading until text or the end.
			continue
		}
		a.buf.WriteString(delta)
		return a.buf.String(), nil
	}
}

func (a *accumulator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.closeFn != nil {
		return a.closeFn()
	}
	return nil
}

// Collect drains s and returns the final snapshot.
func Collect(s Stream) (string, error) {
	defer s.Close()
	var last string
	for {
		snapshot, err := s.Next()
		if err == io.EOF {
			return last, nil
		}
		if err != nil {
			return "", err
		}
		last = snapshot
	}
}
