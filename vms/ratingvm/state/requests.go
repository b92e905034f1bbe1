// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"time"
)

// Request correlates an outstanding decryption with the scope it was issued
// for and the number of entries that formed the decrypted sum.
type Request struct {
	ID          uint64    `json:"id"`
	Scope       Scope     `json:"scope"`
	Subject     string    `json:"subject,omitempty"`
	Count       uint32    `json:"count"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Stat is the write-once published statistic of a scope.
type Stat struct {
	Average     uint32    `json:"average"`
	Count       uint32    `json:"count"`
	Finalized   bool      `json:"finalized"`
	FinalizedAt time.Time `json:"finalizedAt"`
}

func (s *State) GetRequest(id uint64) (*Request, error) {
	return getJSON[Request](s.requests, uint64Key(id), ErrRequestNotFound)
}

// PutRequest records req and marks its scope pending.
func (s *State) PutRequest(req *Request) error {
	key := uint64Key(req.ID)
	has, err := s.requests.Has(key)
	if err != nil {
		return err
	}
	if has {
		return ErrDuplicateRequest
	}
	if err := putJSON(s.requests, key, req); err != nil {
		return err
	}
	return s.pending.Put(req.Scope.Key(), key)
}

// DeleteRequest removes req and clears the pending marker of its scope.
func (s *State) DeleteRequest(req *Request) error {
	if err := s.requests.Delete(uint64Key(req.ID)); err != nil {
		return err
	}
	return s.pending.Delete(req.Scope.Key())
}

// PendingRequestID returns the outstanding request of scope, if any.
func (s *State) PendingRequestID(scope Scope) (uint64, bool, error) {
	return getUint64(s.pending, scope.Key())
}

func (s *State) GetStat(scope Scope) (*Stat, error) {
	return getJSON[Stat](s.stats, scope.Key(), ErrStatNotFound)
}

// PutStat publishes the statistic of scope. A finalized statistic is never
// overwritten.
func (s *State) PutStat(scope Scope, stat *Stat) error {
	existing, err := s.GetStat(scope)
	switch {
	case errors.Is(err, ErrStatNotFound):
	case err != nil:
		return err
	case existing.Finalized:
		return ErrStatFinalized
	}
	return putJSON(s.stats, scope.Key(), stat)
}

// Status returns where scope is in its decryption lifecycle.
func (s *State) Status(scope Scope) (Status, error) {
	stat, err := s.GetStat(scope)
	switch {
	case err == nil && stat.Finalized:
		return Finalized, nil
	case err != nil && !errors.Is(err, ErrStatNotFound):
		return Unrequested, err
	}
	_, pending, err := s.PendingRequestID(scope)
	if err != nil {
		return Unrequested, err
	}
	if pending {
		return Requested, nil
	}
	return Unrequested, nil
}
