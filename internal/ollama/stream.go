// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamChunk is one line of a streaming chat response.
type StreamChunk struct {
	// Content is the text added by this chunk (a delta).
	Content string

	// Done is set on the final chunk.
	Done       bool
	DoneReason string

	// EvalCount is the number of generated tokens, final chunk only.
	EvalCount int
}

// StreamReader parses the newline-delimited JSON body of a streaming chat response.
type StreamReader struct {
	ctx       context.Context
	body      io.ReadCloser
	reader    *bufio.Reader
	closeOnce sync.Once
	done      bool
}

// NewStreamReader creates a new stream reader over body.
func NewStreamReader(ctx context.Context, body io.ReadCloser) *StreamReader {
	return &StreamReader{
		ctx:    ctx,
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next returns the next chunk. After the chunk with Done set it returns io.EOF.
// A body that ends without a done chunk is an error.
func (s *StreamReader) Next() (*StreamChunk, error) {
	for {
		if s.done {
			return nil, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil && len(line) == 0 {
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			if err == io.EOF {
				return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before completion"}
			}
			return nil, &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var resp ChatResponse
		if jsonErr := json.Unmarshal(line, &resp); jsonErr != nil {
			// Skip malformed lines
			continue
		}
		if resp.Error != "" {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
		}

		s.done = resp.Done
		return &StreamChunk{
			Content:    resp.Message.Content,
			Done:       resp.Done,
			DoneReason: resp.DoneReason,
			EvalCount:  resp.EvalCount,
		}, nil
	}
}

// Close releases the response body. It is safe to call more than once.
func (s *StreamReader) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
