// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves the rating ledger over JSON-RPC 2.0.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/ledger"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

// Name is the JSON-RPC service name; methods are called as rating.<method>.
const Name = "rating"

// PublicParams describes what a client needs to encrypt ratings and check
// published statistics.
type PublicParams struct {
	Ledger               ids.ShortID         `json:"ledger"`
	Principal            ids.ShortID         `json:"principal"`
	Modulus              string              `json:"modulus"`
	CiphertextSize       int                 `json:"ciphertextSize"`
	AttestationKeys      []ed25519.PublicKey `json:"attestationKeys"`
	AttestationThreshold int                 `json:"attestationThreshold"`
	MaxSubjectLength     int                 `json:"maxSubjectLength"`
}

// Service provides JSON-RPC endpoints for the rating ledger.
type Service struct {
	log    log.Logger
	ledger *ledger.Ledger
	engine *fhe.PaillierEngine
	signer *fhe.InputSigner
	auth   *Authenticator
	params PublicParams
}

func NewService(
	logger log.Logger,
	l *ledger.Ledger,
	engine *fhe.PaillierEngine,
	signer *fhe.InputSigner,
	auth *Authenticator,
	params PublicParams,
) *Service {
	return &Service{
		log:    logger,
		ledger: l,
		engine: engine,
		signer: signer,
		auth:   auth,
		params: params,
	}
}

type EmptyArgs struct{}

type EmptyReply struct{}

type SubjectArgs struct {
	Subject string `json:"subject"`
}

type SealedArgs struct {
	Subject    string `json:"subject"`
	Ciphertext []byte `json:"ciphertext"`
	Proof      []byte `json:"proof"`
}

type EntryIDReply struct {
	EntryID uint64 `json:"entryID"`
}

// Submit records the caller's encrypted rating of a subject.
func (s *Service) Submit(r *http.Request, args *SealedArgs, reply *EntryIDReply) error {
	caller, err := s.auth.Caller(r)
	if err != nil {
		return rpcError(err)
	}
	id, err := s.ledger.Submit(r.Context(), caller, args.Subject, fhe.ExternalInput{
		Ciphertext: args.Ciphertext,
		Proof:      args.Proof,
	})
	if err != nil {
		return rpcError(err)
	}
	reply.EntryID = id
	return nil
}

// Update replaces the caller's active rating.
func (s *Service) Update(r *http.Request, args *SealedArgs, reply *EntryIDReply) error {
	caller, err := s.auth.Caller(r)
	if err != nil {
		return rpcError(err)
	}
	id, err := s.ledger.Update(r.Context(), caller, args.Subject, fhe.ExternalInput{
		Ciphertext: args.Ciphertext,
		Proof:      args.Proof,
	})
	if err != nil {
		return rpcError(err)
	}
	reply.EntryID = id
	return nil
}

// Delete withdraws the caller's active rating.
func (s *Service) Delete(r *http.Request, _ *EmptyArgs, reply *EntryIDReply) error {
	caller, err := s.auth.Caller(r)
	if err != nil {
		return rpcError(err)
	}
	id, err := s.ledger.Delete(r.Context(), caller)
	if err != nil {
		return rpcError(err)
	}
	reply.EntryID = id
	return nil
}

type ProveInputArgs struct {
	Ciphertext []byte `json:"ciphertext"`
}

type ProveInputReply struct {
	Proof []byte `json:"proof"`
}

// ProveInput checks that a ciphertext is well formed and returns the proof
// binding it to the caller.
func (s *Service) ProveInput(r *http.Request, args *ProveInputArgs, reply *ProveInputReply) error {
	caller, err := s.auth.Caller(r)
	if err != nil {
		return rpcError(err)
	}
	if _, err := s.engine.Integer(args.Ciphertext); err != nil {
		return rpcError(fmt.Errorf("%w: %w", ledger.ErrInvalidProof, err))
	}
	reply.Proof = s.signer.Prove(caller, args.Ciphertext)
	return nil
}

type RequestIDReply struct {
	RequestID uint64 `json:"requestID"`
}

// RequestSubjectStats asks for the aggregate of a subject to be decrypted.
func (s *Service) RequestSubjectStats(r *http.Request, args *SubjectArgs, reply *RequestIDReply) error {
	if _, err := s.auth.Caller(r); err != nil {
		return rpcError(err)
	}
	id, err := s.ledger.RequestSubjectStats(r.Context(), args.Subject)
	if err != nil {
		return rpcError(err)
	}
	reply.RequestID = id
	return nil
}

// RequestGlobalStats asks for the global aggregate to be decrypted.
func (s *Service) RequestGlobalStats(r *http.Request, _ *EmptyArgs, reply *RequestIDReply) error {
	if _, err := s.auth.Caller(r); err != nil {
		return rpcError(err)
	}
	id, err := s.ledger.RequestGlobalStats(r.Context())
	if err != nil {
		return rpcError(err)
	}
	reply.RequestID = id
	return nil
}

type CallbackArgs struct {
	RequestID    uint64   `json:"requestID"`
	Cleartext    []byte   `json:"cleartext"`
	Attestations [][]byte `json:"attestations"`
}

// Callback delivers a decryption result. It is authenticated by the
// committee attestations rather than by a bearer token.
func (s *Service) Callback(r *http.Request, args *CallbackArgs, _ *EmptyReply) error {
	err := s.ledger.Callback(r.Context(), args.RequestID, args.Cleartext, args.Attestations)
	if err != nil {
		s.log.Warn("rejected callback",
			log.Uint64("requestID", args.RequestID),
			log.Err(err),
		)
	}
	return rpcError(err)
}

type GrantArgs struct {
	Global  bool   `json:"global"`
	Subject string `json:"subject"`
	Grantee string `json:"grantee"`
}

// GrantStatsAccess extends decryption access of a finalized aggregate.
func (s *Service) GrantStatsAccess(r *http.Request, args *GrantArgs, _ *EmptyReply) error {
	caller, err := s.auth.Caller(r)
	if err != nil {
		return rpcError(err)
	}
	grantee, err := ids.ShortFromString(args.Grantee)
	if err != nil {
		return badParams("grantee", err)
	}
	return rpcError(s.ledger.GrantStatsAccess(r.Context(), caller, scopeOf(args.Global, args.Subject), grantee))
}

type GetEntryArgs struct {
	EntryID uint64 `json:"entryID"`
}

type EntryReply struct {
	Entry *state.Entry `json:"entry"`
}

func (s *Service) GetEntry(_ *http.Request, args *GetEntryArgs, reply *EntryReply) error {
	e, err := s.ledger.Entry(args.EntryID)
	if err != nil {
		return rpcError(err)
	}
	reply.Entry = e
	return nil
}

type SubmitterArgs struct {
	// Submitter defaults to the caller.
	Submitter string `json:"submitter"`
}

func (s *Service) GetActiveEntry(r *http.Request, args *SubmitterArgs, reply *EntryReply) error {
	var (
		submitter ids.ShortID
		err       error
	)
	if args.Submitter == "" {
		submitter, err = s.auth.Caller(r)
	} else {
		submitter, err = ids.ShortFromString(args.Submitter)
		if err != nil {
			return badParams("submitter", err)
		}
	}
	if err != nil {
		return rpcError(err)
	}
	e, err := s.ledger.ActiveEntryOf(submitter)
	if err != nil {
		return rpcError(err)
	}
	reply.Entry = e
	return nil
}

type AggregateReply struct {
	Sum    ids.ID       `json:"sum"`
	Count  uint32       `json:"count"`
	Status state.Status `json:"status"`
}

func (s *Service) GetSubjectAggregate(_ *http.Request, args *SubjectArgs, reply *AggregateReply) error {
	return rpcError(s.aggregate(ledger.SubjectScope(args.Subject), reply))
}

func (s *Service) GetGlobalAggregate(_ *http.Request, _ *EmptyArgs, reply *AggregateReply) error {
	return rpcError(s.aggregate(state.GlobalScope(), reply))
}

func (s *Service) aggregate(scope state.Scope, reply *AggregateReply) error {
	status, err := s.ledger.ScopeStatus(scope)
	if err != nil {
		return err
	}
	reply.Status = status
	agg, err := s.ledger.Aggregate(scope)
	if errors.Is(err, ledger.ErrNoRatings) {
		return nil
	}
	if err != nil {
		return err
	}
	reply.Sum = agg.Sum.Handle()
	reply.Count = agg.Count
	return nil
}

type StatsReply struct {
	Average     uint32    `json:"average"`
	Count       uint32    `json:"count"`
	FinalizedAt time.Time `json:"finalizedAt"`
}

func (s *Service) GetSubjectStats(_ *http.Request, args *SubjectArgs, reply *StatsReply) error {
	return rpcError(s.stats(ledger.SubjectScope(args.Subject), reply))
}

func (s *Service) GetGlobalStats(_ *http.Request, _ *EmptyArgs, reply *StatsReply) error {
	return rpcError(s.stats(state.GlobalScope(), reply))
}

func (s *Service) stats(scope state.Scope, reply *StatsReply) error {
	stat, err := s.ledger.Stats(scope)
	if err != nil {
		return err
	}
	reply.Average = stat.Average
	reply.Count = stat.Count
	reply.FinalizedAt = stat.FinalizedAt
	return nil
}

type GetEventsArgs struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"`
}

type GetEventsReply struct {
	Events []*state.Event `json:"events"`
	Last   uint64         `json:"last"`
}

func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = ledger.MaxEventPage
	}
	events, err := s.ledger.Events(args.From, limit)
	if err != nil {
		return rpcError(err)
	}
	last, err := s.ledger.LastEventSeq()
	if err != nil {
		return rpcError(err)
	}
	reply.Events = events
	reply.Last = last
	return nil
}

func (s *Service) GetPublicParams(_ *http.Request, _ *EmptyArgs, reply *PublicParams) error {
	*reply = s.params
	return nil
}

func scopeOf(global bool, subject string) state.Scope {
	if global {
		return state.GlobalScope()
	}
	return ledger.SubjectScope(subject)
}
