// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import "fmt"

// Reason explains why a model is unavailable.
type Reason int

const (
	// ReasonNone means the model is available.
	ReasonNone Reason = iota

	// ReasonDeviceNotEligible means the configured model is not on this device.
	ReasonDeviceNotEligible

	// ReasonCapabilityNotEnabled means the local model server is not running.
	ReasonCapabilityNotEnabled

	// ReasonModelNotReady means the server is up but the model is not loaded or pulled.
	ReasonModelNotReady

	// ReasonOther covers anything else; see Availability.Detail.
	ReasonOther
)

// String returns the identifier of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "available"
	case ReasonDeviceNotEligible:
		return "deviceNotEligible"
	case ReasonCapabilityNotEnabled:
		return "capabilityNotEnabled"
	case ReasonModelNotReady:
		return "modelNotReady"
	case ReasonOther:
		return "other"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Availability is the readiness of a Gateway.
// The zero value is available.
type Availability struct {
	Reason Reason
	Detail string
}

// Available is the availability of a ready model.
var Available = Availability{Reason: ReasonNone}

// Unavailable returns an unavailable Availability with the given reason.
func Unavailable(reason Reason) Availability {
	return Availability{Reason: reason}
}

// UnavailableOther returns an unavailable Availability carrying a free-form description.
func UnavailableOther(detail string) Availability {
	return Availability{Reason: ReasonOther, Detail: detail}
}

// IsAvailable returns true if prompts can be submitted.
func (a Availability) IsAvailable() bool {
	return a.Reason == ReasonNone
}

// Description returns the user-facing explanation.
func (a Availability) Description() string {
	switch a.Reason {
	case ReasonNone:
		return "Model available"
	case ReasonDeviceNotEligible:
		return "This device doesn't support on-device inference"
	case ReasonCapabilityNotEnabled:
		return "Please start the local model server"
	case ReasonModelNotReady:
		return "The AI model is downloading or not ready"
	default:
		return "Model unavailable: " + a.Detail
	}
}

// String implements fmt.Stringer.
func (a Availability) String() string {
	if a.Reason == ReasonOther {
		return "unavailable(other: " + a.Detail + ")"
	}
	if a.IsAvailable() {
		return "available"
	}
	return "unavailable(" + a.Reason.String() + ")"
}
