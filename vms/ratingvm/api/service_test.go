// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/utils/json"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/ledger"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/oracle"
)

var (
	committeeOnce sync.Once
	committee     *oracle.Committee
	committeeErr  error
)

type testServer struct {
	t      *testing.T
	url    string
	auth   *Authenticator
	engine *fhe.PaillierEngine
	ledger *ledger.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require := require.New(t)

	committeeOnce.Do(func() {
		committee, committeeErr = oracle.NewCommittee(512, 3, 2)
	})
	require.NoError(committeeErr)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(err)
	ledgerID := ids.GenerateTestShortID()

	relayer := oracle.NewRelayer(log.NewNoOpLogger(), committee, 8)
	engine := fhe.NewPaillierEngine(committee.PublicKey(), fhe.NewInputVerifier(ledgerID, pub), relayer)
	l, err := ledger.New(log.NewNoOpLogger(), memdb.New(), engine, ledger.Config{
		Principal:            ledgerID,
		AttestationKeys:      committee.AttestationKeys(),
		AttestationThreshold: committee.Threshold(),
	})
	require.NoError(err)
	relayer.SetCallback(l.Callback)

	ctx, cancel := context.WithCancel(context.Background())
	relayer.Start(ctx, 1)

	auth := NewAuthenticator([]byte("test-secret"))
	server := rpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	require.NoError(server.RegisterService(NewService(
		log.NewNoOpLogger(),
		l,
		engine,
		fhe.NewInputSigner(ledgerID, priv),
		auth,
		PublicParams{
			Ledger:         ledgerID,
			Principal:      ledgerID,
			Modulus:        committee.PublicKey().N.Text(16),
			CiphertextSize: engine.CiphertextSize(),
		},
	), Name))

	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		cancel()
		relayer.Stop()
	})

	return &testServer{
		t:      t,
		url:    httpServer.URL,
		auth:   auth,
		engine: engine,
		ledger: l,
	}
}

func (s *testServer) token(caller ids.ShortID) string {
	s.t.Helper()
	token, err := s.auth.Issue(caller, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) call(token, method string, args, reply interface{}) error {
	s.t.Helper()
	body, err := json2.EncodeClientRequest(Name+"."+method, args)
	require.NoError(s.t, err)

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", bearerPrefix+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	return json2.DecodeClientResponse(resp.Body, reply)
}

func (s *testServer) sealed(caller ids.ShortID, token, subject string, value uint64) *SealedArgs {
	s.t.Helper()
	ct, err := s.engine.Encrypt(value)
	require.NoError(s.t, err)

	var proof ProveInputReply
	require.NoError(s.t, s.call(token, "ProveInput", &ProveInputArgs{Ciphertext: ct}, &proof))
	return &SealedArgs{
		Subject:    subject,
		Ciphertext: ct,
		Proof:      proof.Proof,
	}
}

func requireCode(t *testing.T, err error, code json2.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	jsonErr, ok := err.(*json2.Error)
	require.True(t, ok, "unexpected error type %T: %v", err, err)
	require.Equal(t, code, jsonErr.Code, jsonErr.Message)
}

type aggregateView struct {
	Sum    ids.ID `json:"sum"`
	Count  uint32 `json:"count"`
	Status string `json:"status"`
}

func TestServiceLifecycle(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)

	alice := ids.GenerateTestShortID()
	bob := ids.GenerateTestShortID()
	aliceToken := s.token(alice)
	bobToken := s.token(bob)

	var params PublicParams
	require.NoError(s.call("", "GetPublicParams", &EmptyArgs{}, &params))
	require.Equal(s.engine.CiphertextSize(), params.CiphertextSize)

	var submitted EntryIDReply
	require.NoError(s.call(aliceToken, "Submit", s.sealed(alice, aliceToken, "Leadership", 7), &submitted))
	require.Equal(uint64(1), submitted.EntryID)
	require.NoError(s.call(bobToken, "Submit", s.sealed(bob, bobToken, "Leadership", 9), &submitted))
	require.Equal(uint64(2), submitted.EntryID)

	var entry EntryReply
	require.NoError(s.call(aliceToken, "GetActiveEntry", &SubmitterArgs{}, &entry))
	require.Equal(uint64(1), entry.Entry.ID)
	require.Equal(alice, entry.Entry.Submitter)
	require.Equal("Leadership", entry.Entry.Subject)

	var agg aggregateView
	require.NoError(s.call("", "GetSubjectAggregate", &SubjectArgs{Subject: "Leadership"}, &agg))
	require.Equal(uint32(2), agg.Count)
	require.Equal("unrequested", agg.Status)

	var requested RequestIDReply
	require.NoError(s.call(aliceToken, "RequestSubjectStats", &SubjectArgs{Subject: "Leadership"}, &requested))
	require.NotZero(requested.RequestID)

	var stats StatsReply
	require.Eventually(func() bool {
		return s.call("", "GetSubjectStats", &SubjectArgs{Subject: "Leadership"}, &stats) == nil
	}, 30*time.Second, 10*time.Millisecond)
	require.Equal(uint32(8), stats.Average)
	require.Equal(uint32(2), stats.Count)

	require.NoError(s.call("", "GetSubjectAggregate", &SubjectArgs{Subject: "Leadership"}, &agg))
	require.Equal("finalized", agg.Status)

	var events GetEventsReply
	require.NoError(s.call("", "GetEvents", &GetEventsArgs{From: 1}, &events))
	require.Len(events.Events, 4)
	require.Equal(uint64(4), events.Last)

	var deleted EntryIDReply
	require.NoError(s.call(bobToken, "Delete", &EmptyArgs{}, &deleted))
	require.Equal(uint64(2), deleted.EntryID)
}

func TestServiceErrors(t *testing.T) {
	s := newTestServer(t)

	alice := ids.GenerateTestShortID()
	aliceToken := s.token(alice)
	mallory := ids.GenerateTestShortID()
	malloryToken := s.token(mallory)

	args := s.sealed(alice, aliceToken, "Leadership", 5)

	var reply EntryIDReply
	requireCode(t, s.call("", "Submit", args, &reply), CodeUnauthorized)
	requireCode(t, s.call("not-a-token", "Submit", args, &reply), CodeUnauthorized)

	// the proof is bound to alice
	requireCode(t, s.call(malloryToken, "Submit", args, &reply), json2.E_BAD_PARAMS)

	require.NoError(t, s.call(aliceToken, "Submit", args, &reply))
	requireCode(t, s.call(aliceToken, "Submit", s.sealed(alice, aliceToken, "Leadership", 6), &reply), CodeConflict)
	requireCode(t, s.call(malloryToken, "Delete", &EmptyArgs{}, &reply), CodeConflict)

	var proof ProveInputReply
	requireCode(t, s.call(aliceToken, "ProveInput", &ProveInputArgs{Ciphertext: []byte{1, 2, 3}}, &proof), json2.E_BAD_PARAMS)

	var entry EntryReply
	requireCode(t, s.call("", "GetEntry", &GetEntryArgs{EntryID: 99}, &entry), CodeNotFound)
	requireCode(t, s.call("", "GetActiveEntry", &SubmitterArgs{Submitter: "???"}, &entry), json2.E_BAD_PARAMS)

	var stats StatsReply
	requireCode(t, s.call("", "GetGlobalStats", &EmptyArgs{}, &stats), CodeConflict)

	var empty EmptyReply
	requireCode(t, s.call("", "Callback", &CallbackArgs{
		RequestID: 12345,
		Cleartext: fhe.EncodeCleartext(5),
	}, &empty), CodeCorrelation)
	requireCode(t, s.call(aliceToken, "GrantStatsAccess", &GrantArgs{
		Global:  true,
		Grantee: mallory.String(),
	}, &empty), CodeConflict)
	requireCode(t, s.call(aliceToken, "GrantStatsAccess", &GrantArgs{
		Global:  true,
		Grantee: "???",
	}, &empty), json2.E_BAD_PARAMS)

	var requested RequestIDReply
	requireCode(t, s.call(aliceToken, "RequestSubjectStats", &SubjectArgs{Subject: ""}, &requested), json2.E_BAD_PARAMS)
	requireCode(t, s.call(aliceToken, "RequestSubjectStats", &SubjectArgs{Subject: "Service"}, &requested), CodeConflict)
}
