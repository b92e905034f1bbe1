// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/ids"
)

// Scope is the target of an aggregate or statistic: one subject, or the
// global aggregate across all subjects.
type Scope struct {
	Global  bool   `json:"global"`
	Subject ids.ID `json:"subject"`
}

func GlobalScope() Scope {
	return Scope{Global: true}
}

func SubjectScope(subject ids.ID) Scope {
	return Scope{Subject: subject}
}

// Key is the table key of the scope.
func (s Scope) Key() []byte {
	if s.Global {
		return []byte{0}
	}
	return append([]byte{1}, s.Subject[:]...)
}

func (s Scope) String() string {
	if s.Global {
		return "global"
	}
	return fmt.Sprintf("subject:%s", s.Subject)
}

// Status is the decryption lifecycle of a scope.
type Status uint8

const (
	Unrequested Status = iota
	Requested
	Finalized
)

func (s Status) String() string {
	switch s {
	case Unrequested:
		return "unrequested"
	case Requested:
		return "requested"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
