// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"time"

	"github.com/luxfi/ids"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
)

// Entry is one rating. Rows are never removed; deletion clears Active.
type Entry struct {
	ID        uint64         `json:"id"`
	Submitter ids.ShortID    `json:"submitter"`
	Subject   string         `json:"subject"`
	SubjectID ids.ID         `json:"subjectID"`
	Value     fhe.Ciphertext `json:"value"`
	CreatedAt time.Time      `json:"createdAt"`
	Active    bool           `json:"active"`
}

// NextEntryID allocates the next entry identifier. Identifiers start at 1
// and are never reused.
func (s *State) NextEntryID() (uint64, error) {
	return nextSequence(s.meta, nextEntryKey)
}

// LastEntryID returns the most recently allocated entry identifier, or 0.
func (s *State) LastEntryID() (uint64, error) {
	last, _, err := getUint64(s.meta, nextEntryKey)
	return last, err
}

func (s *State) GetEntry(id uint64) (*Entry, error) {
	return getJSON[Entry](s.entries, uint64Key(id), ErrEntryNotFound)
}

func (s *State) PutEntry(e *Entry) error {
	return putJSON(s.entries, uint64Key(e.ID), e)
}

// ActiveEntryID returns the active entry of submitter, if any.
func (s *State) ActiveEntryID(submitter ids.ShortID) (uint64, bool, error) {
	return getUint64(s.index, submitter.Bytes())
}

func (s *State) SetActiveEntry(submitter ids.ShortID, id uint64) error {
	return s.index.Put(submitter.Bytes(), uint64Key(id))
}

func (s *State) ClearActiveEntry(submitter ids.ShortID) error {
	return s.index.Delete(submitter.Bytes())
}
