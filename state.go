// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

// State is the high-level lifecycle state of a VM instance.
type State uint8

const (
	// Created is the state of a VM that has not been initialized.
	Created State = iota

	// NormalOp indicates the VM is fully operational and serving normally.
	NormalOp

	// Stopped indicates the VM has been shut down.
	Stopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case NormalOp:
		return "NormalOp"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
