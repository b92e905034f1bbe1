// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/SolomonMacAdam/crypt-seal-vault/utils/timer/mockable"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/oracle"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

const testKeyBits = 512

var (
	committeeOnce sync.Once
	committee     *oracle.Committee
	committeeErr  error
)

func testCommittee(t *testing.T) *oracle.Committee {
	t.Helper()
	committeeOnce.Do(func() {
		committee, committeeErr = oracle.NewCommittee(testKeyBits, 3, 2)
	})
	require.NoError(t, committeeErr)
	return committee
}

// manualRequester hands out sequential request ids and keeps the
// ciphertexts until the test answers them.
type manualRequester struct {
	mu       sync.Mutex
	next     uint64
	requests map[uint64][]fhe.Ciphertext
	err      error
}

func (m *manualRequester) RequestDecryption(_ context.Context, cts []fhe.Ciphertext) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.next++
	m.requests[m.next] = cts
	return m.next, nil
}

func (m *manualRequester) ciphertexts(id uint64) []fhe.Ciphertext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	ledger    *Ledger
	engine    *fhe.PaillierEngine
	client    *fhe.Client
	committee *oracle.Committee
	requester *manualRequester
	clock     *mockable.Clock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRequester(t, nil)
}

func newFixtureWithRequester(t *testing.T, requester fhe.DecryptionRequester) *fixture {
	t.Helper()
	require := require.New(t)

	c := testCommittee(t)
	manual := &manualRequester{requests: make(map[uint64][]fhe.Ciphertext)}
	if requester == nil {
		requester = manual
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(err)
	ledgerID := ids.GenerateTestShortID()
	engine := fhe.NewPaillierEngine(c.PublicKey(), fhe.NewInputVerifier(ledgerID, pub), requester)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_700_000_000, 0))

	l, err := New(
		log.NewNoOpLogger(),
		memdb.New(),
		engine,
		Config{
			Principal:            ledgerID,
			AttestationKeys:      c.AttestationKeys(),
			AttestationThreshold: c.Threshold(),
		},
		WithClock(clock),
	)
	require.NoError(err)

	return &fixture{
		t:         t,
		ctx:       context.Background(),
		ledger:    l,
		engine:    engine,
		client:    fhe.NewClient(engine, fhe.NewInputSigner(ledgerID, priv)),
		committee: c,
		requester: manual,
		clock:     clock,
	}
}

func (f *fixture) seal(submitter ids.ShortID, value uint64) fhe.ExternalInput {
	f.t.Helper()
	input, err := f.client.Seal(submitter, value)
	require.NoError(f.t, err)
	return input
}

func (f *fixture) submit(submitter ids.ShortID, subject string, value uint64) uint64 {
	f.t.Helper()
	id, err := f.ledger.Submit(f.ctx, submitter, subject, f.seal(submitter, value))
	require.NoError(f.t, err)
	return id
}

func (f *fixture) update(submitter ids.ShortID, subject string, value uint64) uint64 {
	f.t.Helper()
	id, err := f.ledger.Update(f.ctx, submitter, subject, f.seal(submitter, value))
	require.NoError(f.t, err)
	return id
}

// live returns the decrypted sum and the count of scope, or zeros when the
// scope has no aggregate.
func (f *fixture) live(scope state.Scope) (uint64, uint32) {
	f.t.Helper()
	agg, err := f.ledger.Aggregate(scope)
	if err != nil {
		require.ErrorIs(f.t, err, ErrNoRatings)
		return 0, 0
	}
	sum, err := f.committee.Decrypt(agg.Sum)
	require.NoError(f.t, err)
	return sum, agg.Count
}

func (f *fixture) requireLive(scope state.Scope, expectedSum uint64, expectedCount uint32) {
	f.t.Helper()
	sum, count := f.live(scope)
	require.Equal(f.t, expectedSum, sum, "sum of %s", scope)
	require.Equal(f.t, expectedCount, count, "count of %s", scope)
}

// answer has the committee decrypt request id and delivers the result.
func (f *fixture) answer(id uint64) error {
	f.t.Helper()
	cts := f.requester.ciphertexts(id)
	require.NotEmpty(f.t, cts)
	cleartext, attestations, err := f.committee.Fulfil(id, cts)
	require.NoError(f.t, err)
	return f.ledger.Callback(f.ctx, id, cleartext, attestations)
}

// finalize requests and answers the statistics of scope.
func (f *fixture) finalize(subject string) *state.Stat {
	f.t.Helper()
	require := require.New(f.t)

	var (
		id  uint64
		err error
	)
	if subject == "" {
		id, err = f.ledger.RequestGlobalStats(f.ctx)
	} else {
		id, err = f.ledger.RequestSubjectStats(f.ctx, subject)
	}
	require.NoError(err)
	require.NoError(f.answer(id))

	if subject == "" {
		stat, err := f.ledger.GlobalStats()
		require.NoError(err)
		return stat
	}
	stat, err := f.ledger.SubjectStats(subject)
	require.NoError(err)
	return stat
}
