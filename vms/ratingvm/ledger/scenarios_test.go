// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

const (
	leadership = "Leadership"
	service    = "Service"
)

var global = state.GlobalScope()

func TestSingleRatingAverage(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	x := ids.GenerateTestShortID()

	f.submit(x, leadership, 7)
	f.requireLive(SubjectScope(leadership), 7, 1)

	stat := f.finalize(leadership)
	require.Equal(uint32(7), stat.Average)
	require.Equal(uint32(1), stat.Count)
	require.True(stat.Finalized)
}

func TestTwoRatingsAverage(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	x, y := ids.GenerateTestShortID(), ids.GenerateTestShortID()

	f.submit(x, leadership, 7)
	f.submit(y, leadership, 9)
	f.requireLive(SubjectScope(leadership), 16, 2)

	stat := f.finalize(leadership)
	require.Equal(uint32(8), stat.Average)
	require.Equal(uint32(2), stat.Count)
}

func TestUpdateThenDelete(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	x, y := ids.GenerateTestShortID(), ids.GenerateTestShortID()

	entryID := f.submit(x, leadership, 7)
	f.submit(y, leadership, 9)
	require.Equal(uint32(8), f.finalize(leadership).Average)

	require.Equal(entryID, f.update(x, service, 3))
	f.requireLive(SubjectScope(leadership), 9, 1)
	f.requireLive(SubjectScope(service), 3, 1)
	f.requireLive(global, 12, 2)

	deleted, err := f.ledger.Delete(f.ctx, x)
	require.NoError(err)
	require.Equal(entryID, deleted)

	_, err = f.ledger.Aggregate(SubjectScope(service))
	require.ErrorIs(err, ErrNoRatings)
	count, err := f.ledger.SubjectCount(service)
	require.NoError(err)
	require.Zero(count)
	f.requireLive(global, 9, 1)

	entry, err := f.ledger.Entry(entryID)
	require.NoError(err)
	require.False(entry.Active)
	require.Equal(service, entry.Subject)

	again := f.submit(x, service, 5)
	require.Greater(again, entryID)
	f.requireLive(global, 14, 2)
}

func TestFinalizedStatIsFrozen(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	x, y, z := ids.GenerateTestShortID(), ids.GenerateTestShortID(), ids.GenerateTestShortID()

	f.submit(x, leadership, 7)
	f.submit(y, leadership, 9)
	require.Equal(uint32(8), f.finalize(leadership).Average)

	f.submit(z, leadership, 10)
	f.requireLive(SubjectScope(leadership), 26, 3)

	stat, err := f.ledger.SubjectStats(leadership)
	require.NoError(err)
	require.Equal(uint32(8), stat.Average)
	require.Equal(uint32(2), stat.Count)

	_, err = f.ledger.RequestSubjectStats(f.ctx, leadership)
	require.ErrorIs(err, ErrAlreadyFinalized)
	require.True(IsConflict(err))
}
