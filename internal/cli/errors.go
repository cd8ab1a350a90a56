// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/iris/internal/config"
	"github.com/jeranaias/iris/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitUnavailable   = 4
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a command invoked with missing or malformed arguments.
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s\nRun 'iris help' for usage.", e.Command, e.Reason)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// AmbiguousError is returned when an abbreviated ID matches several conversations.
type AmbiguousError struct {
	Prefix  string
	Matches int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("conversation ID %q is ambiguous (%d matches); use more characters", e.Prefix, e.Matches)
}

func usageError(cmd Command, reason string) error {
	return &UsageError{Command: cmd.String(), Reason: reason}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err in a consistent format: a JSON object in JSON
// mode, a styled line otherwise.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		out := map[string]interface{}{
			"success":    false,
			"error":      err.Error(),
			"error_type": errorType(err),
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

func errorType(err error) string {
	var usage *UsageError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &usage):
		return "usage_error"
	case errors.As(err, &notFound), errors.Is(err, session.ErrConversationNotFound):
		return "not_found_error"
	case session.IsUnavailable(err):
		return "unavailable_error"
	case session.IsGatewayFailure(err):
		return "gateway_error"
	case session.IsPersistenceFailure(err):
		return "persistence_error"
	case config.IsValidationError(err):
		return "config_error"
	default:
		return "generic_error"
	}
}

// GetExitCode determines the process exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch errorType(err) {
	case "usage_error":
		return ExitUsageError
	case "not_found_error":
		return ExitNotFoundError
	case "unavailable_error":
		return ExitUnavailable
	case "config_error":
		return ExitConfigError
	default:
		return ExitGeneralError
	}
}
