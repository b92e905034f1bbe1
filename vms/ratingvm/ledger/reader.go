// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

const MaxEventPage = 1024

// view runs fn against the committed state.
func view[T any](l *Ledger, fn func(*state.State) (T, error)) (T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(state.New(l.db))
}

func cloneEntry(e *state.Entry) *state.Entry {
	c := *e
	c.Value = e.Value.Clone()
	return &c
}

// Entry returns the entry with the given id, active or not.
func (l *Ledger) Entry(id uint64) (*state.Entry, error) {
	if e, ok := l.entries.Get(id); ok {
		return cloneEntry(e), nil
	}
	return view(l, func(s *state.State) (*state.Entry, error) {
		e, err := s.GetEntry(id)
		if errors.Is(err, state.ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownEntry, id)
		}
		if err != nil {
			return nil, err
		}
		l.entries.Put(id, e)
		return cloneEntry(e), nil
	})
}

// ActiveEntryOf returns the submitter's active entry.
func (l *Ledger) ActiveEntryOf(submitter ids.ShortID) (*state.Entry, error) {
	id, err := view(l, func(s *state.State) (uint64, error) {
		id, active, err := s.ActiveEntryID(submitter)
		if err != nil {
			return 0, err
		}
		if !active {
			return 0, ErrNoActiveEntry
		}
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	return l.Entry(id)
}

// Aggregate returns the live aggregate of scope.
func (l *Ledger) Aggregate(scope state.Scope) (*state.Aggregate, error) {
	return view(l, func(s *state.State) (*state.Aggregate, error) {
		agg, err := s.GetAggregate(scope)
		if errors.Is(err, state.ErrAggregateNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoRatings, scope)
		}
		return agg, err
	})
}

// SubjectSum returns the handle of the encrypted sum of subject.
func (l *Ledger) SubjectSum(subject string) (ids.ID, error) {
	return l.sumHandle(SubjectScope(subject))
}

// GlobalSum returns the handle of the encrypted global sum.
func (l *Ledger) GlobalSum() (ids.ID, error) {
	return l.sumHandle(state.GlobalScope())
}

func (l *Ledger) sumHandle(scope state.Scope) (ids.ID, error) {
	agg, err := l.Aggregate(scope)
	if err != nil {
		return ids.Empty, err
	}
	return agg.Sum.Handle(), nil
}

// SubjectCount returns the number of active entries for subject.
func (l *Ledger) SubjectCount(subject string) (uint32, error) {
	return l.count(SubjectScope(subject))
}

// GlobalCount returns the number of active entries.
func (l *Ledger) GlobalCount() (uint32, error) {
	return l.count(state.GlobalScope())
}

func (l *Ledger) count(scope state.Scope) (uint32, error) {
	agg, err := l.Aggregate(scope)
	if errors.Is(err, ErrNoRatings) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return agg.Count, nil
}

// Subjects returns the live aggregate of every subject with active entries.
func (l *Ledger) Subjects() ([]*state.Aggregate, error) {
	return view(l, (*state.State).Subjects)
}

// SubjectStats returns the published statistic of subject.
func (l *Ledger) SubjectStats(subject string) (*state.Stat, error) {
	return l.Stats(SubjectScope(subject))
}

// GlobalStats returns the published global statistic.
func (l *Ledger) GlobalStats() (*state.Stat, error) {
	return l.Stats(state.GlobalScope())
}

func (l *Ledger) Stats(scope state.Scope) (*state.Stat, error) {
	return view(l, func(s *state.State) (*state.Stat, error) {
		stat, err := s.GetStat(scope)
		if errors.Is(err, state.ErrStatNotFound) || (err == nil && !stat.Finalized) {
			return nil, fmt.Errorf("%w: %s", ErrNotFinalized, scope)
		}
		return stat, err
	})
}

// PendingRequest returns the outstanding decryption request with id.
func (l *Ledger) PendingRequest(id uint64) (*state.Request, error) {
	return view(l, func(s *state.State) (*state.Request, error) {
		req, err := s.GetRequest(id)
		if errors.Is(err, state.ErrRequestNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownRequest, id)
		}
		return req, err
	})
}

// ScopeStatus returns where scope is in its decryption lifecycle.
func (l *Ledger) ScopeStatus(scope state.Scope) (state.Status, error) {
	return view(l, func(s *state.State) (state.Status, error) {
		return s.Status(scope)
	})
}

// Events returns up to limit events starting at sequence number from.
func (l *Ledger) Events(from uint64, limit int) ([]*state.Event, error) {
	limit = min(max(limit, 0), MaxEventPage)
	return view(l, func(s *state.State) ([]*state.Event, error) {
		return s.Events(from, limit)
	})
}

// LastEventSeq returns the sequence number of the newest committed event.
func (l *Ledger) LastEventSeq() (uint64, error) {
	return view(l, (*state.State).LastEventSeq)
}

// IsAllowed reports whether principal may have the ciphertext with handle
// decrypted.
func (l *Ledger) IsAllowed(handle ids.ID, principal ids.ShortID) (bool, error) {
	return view(l, func(s *state.State) (bool, error) {
		return s.IsAllowed(handle, principal)
	})
}
