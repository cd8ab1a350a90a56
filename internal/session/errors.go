// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/storage"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// Kind categorizes exchange errors for handling.
type Kind int

const (
	KindUnknown Kind = iota

	// KindUnavailable: the model could not be used, Submit was refused.
	KindUnavailable

	// KindGateway: the model failed during an exchange.
	KindGateway

	// KindPersistence: a message or conversation could not be saved or loaded.
	KindPersistence
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindGateway:
		return "gateway"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is a failure surfaced to the user. Message is ready for display.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Availability is set for KindUnavailable.
	Availability gateway.Availability
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Sentinel errors returned by Submit and the conversation helpers.
var (
	ErrEmptyPrompt    = errors.New("prompt is empty")
	ErrExchangeActive = errors.New("a response is already in progress for this conversation")
	ErrClosed         = errors.New("session manager is closed")

	// ErrConversationNotFound is the storage sentinel, re-exported for callers
	// that only import session.
	ErrConversationNotFound = storage.ErrConversationNotFound
)

// IsUnavailable reports whether err was caused by an unavailable model.
func IsUnavailable(err error) bool {
	return kindOf(err) == KindUnavailable
}

// IsGatewayFailure reports whether err came from the model during an exchange.
func IsGatewayFailure(err error) bool {
	return kindOf(err) == KindGateway
}

// IsPersistenceFailure reports whether err came from the store.
func IsPersistenceFailure(err error) bool {
	return kindOf(err) == KindPersistence
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func unavailableError(a gateway.Availability) *Error {
	return &Error{Kind: KindUnavailable, Message: a.Description(), Availability: a}
}

func gatewayError(err error) *Error {
	return &Error{Kind: KindGateway, Message: "Failed to get response: " + err.Error(), Cause: err}
}

func persistenceError(what string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: "Failed to " + what + ": " + err.Error(), Cause: err}
}
