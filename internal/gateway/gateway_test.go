// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deltas returns a DeltaFunc that yields parts, marking the last one done.
func deltas(parts ...string) DeltaFunc {
	i := 0
	return func() (string, bool, error) {
		if i >= len(parts) {
			return "", true, nil
		}
		p := parts[i]
		i++
		return p, i == len(parts), nil
	}
}

func TestAccumulate_Snapshots(t *testing.T) {
	s := Accumulate(deltas("H", "e", "llo"), nil)

	var got []string
	for {
		snap, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, snap)
	}

	assert.Equal(t, []string{"H", "He", "Hello"}, got)
}

func TestAccumulate_SkipsEmptyDeltas(t *testing.T) {
	s := Accumulate(deltas("", "Hi", "", "!"), nil)

	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "Hi", first)

	second, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "Hi!", second)

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestAccumulate_Error(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	s := Accumulate(func() (string, bool, error) {
		calls++
		if calls == 1 {
			return "H", false, nil
		}
		return "", false, boom
	}, nil)

	snap, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "H", snap)

	_, err = s.Next()
	assert.ErrorIs(t, err, boom)
}

func TestAccumulate_CloseOnce(t *testing.T) {
	closed := 0
	s := Accumulate(deltas("x"), func() error {
		closed++
		return nil
	})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, closed)
}

func TestCollect(t *testing.T) {
	got, err := Collect(Accumulate(deltas("Hel", "lo"), nil))
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestAvailabilityDescription(t *testing.T) {
	tests := []struct {
		a    Availability
		want string
	}{
		{Available, "Model available"},
		{Unavailable(ReasonDeviceNotEligible), "This device doesn't support on-device inference"},
		{Unavailable(ReasonCapabilityNotEnabled), "Please start the local model server"},
		{Unavailable(ReasonModelNotReady), "The AI model is downloading or not ready"},
		{UnavailableOther("disk full"), "Model unavailable: disk full"},
	}
	for _, tc := range tests {
		if got := tc.a.Description(); got != tc.want {
			t.Errorf("%v.Description() = %q, want %q", tc.a, got, tc.want)
		}
	}
}

func TestAvailabilityZeroValueIsAvailable(t *testing.T) {
	var a Availability
	assert.True(t, a.IsAvailable())
	assert.False(t, Unavailable(ReasonModelNotReady).IsAvailable())
	assert.Equal(t, "unavailable(modelNotReady)", Unavailable(ReasonModelNotReady).String())
}

func TestIsLocalURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:11434", true},
		{"http://127.0.0.1:8080/v1", true},
		{"http://[::1]:11434", true},
		{"http://api.localhost", true},
		{"https://api.openai.com/v1", false},
		{"http://192.168.1.20:11434", false},
		{"not a url", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsLocalURL(tc.url); got != tc.want {
			t.Errorf("IsLocalURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}
