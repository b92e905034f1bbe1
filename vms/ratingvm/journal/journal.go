// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package journal mirrors the ledger event log into a local pebble store for
// off-ledger observers. Records are JSON events compressed with zstd and
// keyed by big-endian sequence number.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/luxfi/log"

	"github.com/SolomonMacAdam/crypt-seal-vault/utils/compression"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

const (
	maxRecordSize = 1 << 20
	followPage    = 256
)

var ErrOutOfOrder = errors.New("event out of order")

// Source is where the journal reads committed events from.
type Source interface {
	Events(from uint64, limit int) ([]*state.Event, error)
}

type Journal struct {
	log        log.Logger
	db         *pebble.DB
	compressor compression.Compressor

	// mu serializes appends.
	mu sync.Mutex
}

// Open opens or creates the journal stored at path.
func Open(logger log.Logger, path string) (*Journal, error) {
	compressor, err := compression.NewZstdCompressor(maxRecordSize, zstd.SpeedDefault)
	if err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{
		Cache: pebble.NewCache(8 << 20),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %s: %w", path, err)
	}
	return &Journal{
		log:        logger,
		db:         db,
		compressor: compressor,
	}, nil
}

func seqKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

// Last returns the sequence number of the newest record, or 0.
func (j *Journal) Last() (uint64, error) {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return binary.BigEndian.Uint64(iter.Key()), nil
}

// Append stores events. Events already journaled are skipped; a gap in the
// sequence is rejected.
func (j *Journal) Append(events []*state.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	last, err := j.Last()
	if err != nil {
		return err
	}

	batch := j.db.NewBatch()
	defer batch.Close()

	for _, e := range events {
		if e.Seq <= last {
			continue
		}
		if e.Seq != last+1 {
			return fmt.Errorf("%w: expected %d, got %d", ErrOutOfOrder, last+1, e.Seq)
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", e.Seq, err)
		}
		record, err := j.compressor.Compress(data)
		if err != nil {
			return fmt.Errorf("failed to compress event %d: %w", e.Seq, err)
		}
		if err := batch.Set(seqKey(e.Seq), record, nil); err != nil {
			return err
		}
		last = e.Seq
	}
	return batch.Commit(pebble.Sync)
}

// Read returns up to limit records starting at sequence number from.
func (j *Journal) Read(from uint64, limit int) ([]*state.Event, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: seqKey(from),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*state.Event
	for valid := iter.First(); valid && len(out) < limit; valid = iter.Next() {
		record, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		data, err := j.compressor.Decompress(record)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress record %x: %w", iter.Key(), err)
		}
		var e state.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %x: %w", iter.Key(), err)
		}
		out = append(out, &e)
	}
	return out, iter.Error()
}

// CatchUp copies every event of src newer than the journal.
func (j *Journal) CatchUp(src Source) (int, error) {
	var copied int
	for {
		last, err := j.Last()
		if err != nil {
			return copied, err
		}
		events, err := src.Events(last+1, followPage)
		if err != nil {
			return copied, err
		}
		if len(events) == 0 {
			return copied, nil
		}
		if err := j.Append(events); err != nil {
			return copied, err
		}
		copied += len(events)
	}
}

// Follow catches up with src, then again every time wake fires, until ctx
// is done.
func (j *Journal) Follow(ctx context.Context, src Source, wake <-chan struct{}) error {
	for {
		n, err := j.CatchUp(src)
		if err != nil {
			j.log.Error("failed to journal events", log.Err(err))
			return err
		}
		if n > 0 {
			j.log.Debug("journaled events", log.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		}
	}
}

func (j *Journal) Close() error {
	return j.db.Close()
}
