// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state holds the persistent tables of the rating ledger: entries,
// the submitter index, aggregates, decryption requests, finalized statistics,
// access grants and the event log.
//
// State performs no locking and no validation beyond record integrity. The
// ledger owns both and runs every mutation against a transaction overlay.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/zeebo/blake3"
)

var (
	metaPrefix      = []byte("meta")
	entryPrefix     = []byte("entry")
	indexPrefix     = []byte("index")
	aggregatePrefix = []byte("aggregate")
	requestPrefix   = []byte("request")
	pendingPrefix   = []byte("pending")
	statPrefix      = []byte("stat")
	aclPrefix       = []byte("acl")
	eventPrefix     = []byte("event")

	nextEntryKey = []byte("nextEntry")
	nextEventKey = []byte("nextEvent")

	ErrEntryNotFound     = errors.New("entry not found")
	ErrAggregateNotFound = errors.New("aggregate not found")
	ErrRequestNotFound   = errors.New("decryption request not found")
	ErrStatNotFound      = errors.New("finalized statistic not found")
	ErrStatFinalized     = errors.New("statistic already finalized")
	ErrDuplicateRequest  = errors.New("decryption request already exists")
)

// State is a view of the ledger tables over a single database.
type State struct {
	meta       database.Database
	entries    database.Database
	index      database.Database
	aggregates database.Database
	requests   database.Database
	pending    database.Database
	stats      database.Database
	acl        database.Database
	events     database.Database
}

// New returns the ledger tables stored in db.
func New(db database.Database) *State {
	return &State{
		meta:       prefixdb.New(metaPrefix, db),
		entries:    prefixdb.New(entryPrefix, db),
		index:      prefixdb.New(indexPrefix, db),
		aggregates: prefixdb.New(aggregatePrefix, db),
		requests:   prefixdb.New(requestPrefix, db),
		pending:    prefixdb.New(pendingPrefix, db),
		stats:      prefixdb.New(statPrefix, db),
		acl:        prefixdb.New(aclPrefix, db),
		events:     prefixdb.New(eventPrefix, db),
	}
}

// SubjectID is the stable identifier of a subject name.
func SubjectID(name string) ids.ID {
	return ids.ID(blake3.Sum256([]byte(name)))
}

func uint64Key(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func getJSON[T any](db database.Database, key []byte, notFound error) (*T, error) {
	data, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return decodeJSON[T](data)
}

func decodeJSON[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return &v, nil
}

func putJSON(db database.Database, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return db.Put(key, data)
}

func getUint64(db database.Database, key []byte) (uint64, bool, error) {
	data, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("corrupt counter %q: %d bytes", key, len(data))
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// nextSequence returns the next value of the counter at key, starting at 1.
func nextSequence(db database.Database, key []byte) (uint64, error) {
	last, _, err := getUint64(db, key)
	if err != nil {
		return 0, err
	}
	next := last + 1
	return next, db.Put(key, uint64Key(next))
}
