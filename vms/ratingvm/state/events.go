// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"time"

	"github.com/luxfi/ids"
)

type EventKind string

const (
	Submitted      EventKind = "submitted"
	Updated        EventKind = "updated"
	Deleted        EventKind = "deleted"
	StatsRequested EventKind = "stats-requested"
	StatsPublished EventKind = "stats-published"
)

// Event is one record of the append-only ledger log. Seq is assigned on
// append and increases by one per event.
type Event struct {
	Seq       uint64      `json:"seq"`
	Kind      EventKind   `json:"kind"`
	EntryID   uint64      `json:"entryID,omitempty"`
	Submitter ids.ShortID `json:"submitter"`
	Subject   string      `json:"subject,omitempty"`
	Scope     *Scope      `json:"scope,omitempty"`
	RequestID uint64      `json:"requestID,omitempty"`
	Average   uint32      `json:"average,omitempty"`
	Count     uint32      `json:"count,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AppendEvent assigns e its sequence number and stores it.
func (s *State) AppendEvent(e *Event) error {
	seq, err := nextSequence(s.meta, nextEventKey)
	if err != nil {
		return err
	}
	e.Seq = seq
	return putJSON(s.events, uint64Key(seq), e)
}

// LastEventSeq returns the sequence number of the newest event, or 0.
func (s *State) LastEventSeq() (uint64, error) {
	last, _, err := getUint64(s.meta, nextEventKey)
	return last, err
}

// Events returns up to limit events starting at sequence number from.
func (s *State) Events(from uint64, limit int) ([]*Event, error) {
	it := s.events.NewIteratorWithStart(uint64Key(from))
	defer it.Release()

	var out []*Event
	for len(out) < limit && it.Next() {
		e, err := decodeJSON[Event](it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, it.Error()
}
