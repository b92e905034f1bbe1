// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"go.opentelemetry.io/otel/attribute"

	safemath "github.com/SolomonMacAdam/crypt-seal-vault/utils/math"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

// Submit records a new rating of subject by submitter. A submitter may hold
// one active entry across all subjects.
func (l *Ledger) Submit(ctx context.Context, submitter ids.ShortID, subject string, input fhe.ExternalInput) (uint64, error) {
	var entryID uint64
	err := l.execute(ctx, "submit", func(_ context.Context, tx *txn) error {
		if err := l.verifySubject(subject); err != nil {
			return err
		}
		_, active, err := tx.ActiveEntryID(submitter)
		if err != nil {
			return err
		}
		if active {
			return ErrAlreadySubmitted
		}
		value, err := l.fromExternal(input, submitter)
		if err != nil {
			return err
		}

		entryID, err = tx.NextEntryID()
		if err != nil {
			return err
		}
		entry := &state.Entry{
			ID:        entryID,
			Submitter: submitter,
			Subject:   subject,
			SubjectID: state.SubjectID(subject),
			Value:     value,
			CreatedAt: tx.now,
			Active:    true,
		}
		if err := tx.PutEntry(entry); err != nil {
			return err
		}
		if err := tx.SetActiveEntry(submitter, entryID); err != nil {
			return err
		}
		if err := l.include(tx, entry); err != nil {
			return err
		}
		return tx.emit(&state.Event{
			Kind:      state.Submitted,
			EntryID:   entryID,
			Submitter: submitter,
			Subject:   subject,
		})
	}, attribute.Stringer("submitter", submitter))
	if err != nil {
		return 0, err
	}
	l.log.Debug("rating submitted",
		log.Uint64("entryID", entryID),
		log.Stringer("submitter", submitter),
		log.String("subject", subject),
	)
	return entryID, nil
}

// Update moves the submitter's active entry to subject with a new value.
// The old value is subtracted out of its aggregates before the new one is
// added, all in one transaction.
func (l *Ledger) Update(ctx context.Context, submitter ids.ShortID, subject string, input fhe.ExternalInput) (uint64, error) {
	var entryID uint64
	err := l.execute(ctx, "update", func(_ context.Context, tx *txn) error {
		if err := l.verifySubject(subject); err != nil {
			return err
		}
		entry, err := activeEntry(tx, submitter)
		if err != nil {
			return err
		}
		value, err := l.fromExternal(input, submitter)
		if err != nil {
			return err
		}

		if err := l.exclude(tx, entry); err != nil {
			return err
		}
		entry.Subject = subject
		entry.SubjectID = state.SubjectID(subject)
		entry.Value = value
		entry.CreatedAt = tx.now
		if err := tx.PutEntry(entry); err != nil {
			return err
		}
		if err := l.include(tx, entry); err != nil {
			return err
		}

		entryID = entry.ID
		tx.touched = append(tx.touched, entryID)
		return tx.emit(&state.Event{
			Kind:      state.Updated,
			EntryID:   entryID,
			Submitter: submitter,
			Subject:   subject,
		})
	}, attribute.Stringer("submitter", submitter))
	return entryID, err
}

// Delete deactivates the submitter's active entry and takes its value out
// of the aggregates. The entry row is kept.
func (l *Ledger) Delete(ctx context.Context, submitter ids.ShortID) (uint64, error) {
	var entryID uint64
	err := l.execute(ctx, "delete", func(_ context.Context, tx *txn) error {
		entry, err := activeEntry(tx, submitter)
		if err != nil {
			return err
		}
		if err := l.exclude(tx, entry); err != nil {
			return err
		}
		entry.Active = false
		if err := tx.PutEntry(entry); err != nil {
			return err
		}
		if err := tx.ClearActiveEntry(submitter); err != nil {
			return err
		}

		entryID = entry.ID
		tx.touched = append(tx.touched, entryID)
		return tx.emit(&state.Event{
			Kind:      state.Deleted,
			EntryID:   entryID,
			Submitter: submitter,
			Subject:   entry.Subject,
		})
	}, attribute.Stringer("submitter", submitter))
	return entryID, err
}

func (l *Ledger) verifySubject(subject string) error {
	if len(subject) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidSubject)
	}
	if len(subject) > l.cfg.MaxSubjectLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidSubject, len(subject), l.cfg.MaxSubjectLength)
	}
	return nil
}

func (l *Ledger) fromExternal(input fhe.ExternalInput, submitter ids.ShortID) (fhe.Ciphertext, error) {
	value, err := l.engine.FromExternal(input, submitter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	return value, nil
}

func activeEntry(tx *txn, submitter ids.ShortID) (*state.Entry, error) {
	entryID, active, err := tx.ActiveEntryID(submitter)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNoActiveEntry
	}
	entry, err := tx.GetEntry(entryID)
	if err != nil {
		return nil, fmt.Errorf("index references entry %d: %w", entryID, err)
	}
	return entry, nil
}

// include adds entry's value into its subject aggregate and the global
// aggregate and grants the submitter and the ledger access to the value and
// both new sums.
func (l *Ledger) include(tx *txn, entry *state.Entry) error {
	if err := l.allow(tx, entry.Value, entry.Submitter); err != nil {
		return err
	}
	if err := l.add(tx, state.SubjectScope(entry.SubjectID), entry.Subject, entry.Value, entry.Submitter); err != nil {
		return err
	}
	return l.add(tx, state.GlobalScope(), "", entry.Value, entry.Submitter)
}

// exclude subtracts entry's value out of its subject aggregate and the
// global aggregate. The departing submitter gets no access to the new sums.
func (l *Ledger) exclude(tx *txn, entry *state.Entry) error {
	if err := l.sub(tx, state.SubjectScope(entry.SubjectID), entry.Value); err != nil {
		return err
	}
	return l.sub(tx, state.GlobalScope(), entry.Value)
}

func (l *Ledger) add(tx *txn, scope state.Scope, subject string, value fhe.Ciphertext, submitter ids.ShortID) error {
	agg, err := tx.GetAggregate(scope)
	switch {
	case errors.Is(err, state.ErrAggregateNotFound):
		agg = &state.Aggregate{
			Subject: subject,
			Sum:     value.Clone(),
		}
	case err != nil:
		return err
	default:
		agg.Sum, err = l.engine.Add(agg.Sum, value)
		if err != nil {
			return fmt.Errorf("failed to add into %s: %w", scope, err)
		}
	}
	agg.Count, err = safemath.Add(agg.Count, 1)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTooManyEntries, scope)
	}
	if err := l.putAggregate(tx, scope, agg); err != nil {
		return err
	}
	return tx.Allow(agg.Sum.Handle(), submitter)
}

func (l *Ledger) sub(tx *txn, scope state.Scope, value fhe.Ciphertext) error {
	agg, err := tx.GetAggregate(scope)
	if err != nil {
		return fmt.Errorf("aggregate of active entry in %s: %w", scope, err)
	}
	agg.Count, err = safemath.Sub(agg.Count, 1)
	if err != nil {
		return fmt.Errorf("count of %s: %w", scope, err)
	}
	if agg.Count > 0 {
		agg.Sum, err = l.engine.Sub(agg.Sum, value)
		if err != nil {
			return fmt.Errorf("failed to subtract from %s: %w", scope, err)
		}
	}
	return l.putAggregate(tx, scope, agg)
}

// putAggregate stores agg and grants the principal access to its sum.
func (l *Ledger) putAggregate(tx *txn, scope state.Scope, agg *state.Aggregate) error {
	if err := tx.PutAggregate(scope, agg); err != nil {
		return err
	}
	if scope.Global {
		tx.activeEntries = agg.Count
		tx.activeEntriesSet = true
	}
	if agg.Count == 0 {
		return nil
	}
	return tx.Allow(agg.Sum.Handle(), l.cfg.Principal)
}

// allow grants the ledger and principal access to ct.
func (l *Ledger) allow(tx *txn, ct fhe.Ciphertext, principal ids.ShortID) error {
	handle := ct.Handle()
	if err := tx.Allow(handle, l.cfg.Principal); err != nil {
		return err
	}
	return tx.Allow(handle, principal)
}
