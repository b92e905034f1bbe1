// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe defines the homomorphic capability the rating ledger runs on:
// ciphertext algebra, validation of externally encrypted inputs, the
// decryption-request primitive and the wire formats shared with the
// decryption oracle.
//
// The ledger only ever adds and subtracts ciphertexts. A threshold Paillier
// implementation of the capability is provided by PaillierEngine.
package fhe

//go:generate go run go.uber.org/mock/mockgen -package=${GOPACKAGE}mock -destination=${GOPACKAGE}mock/engine.go -mock_names=Engine=Engine . Engine

import (
	"context"
	"errors"

	"github.com/luxfi/ids"
)

var (
	ErrInvalidProof         = errors.New("invalid input proof")
	ErrMalformedCiphertext  = errors.New("malformed ciphertext")
	ErrNoCiphertexts        = errors.New("no ciphertexts to decrypt")
	ErrRequesterUnavailable = errors.New("decryption requester not configured")
)

// Engine is the homomorphic engine consumed by the ledger.
type Engine interface {
	// FromExternal verifies the proof attached to an externally encrypted
	// input and converts it into an internal ciphertext bound to submitter.
	FromExternal(input ExternalInput, submitter ids.ShortID) (Ciphertext, error)

	// Add returns a ciphertext of the sum of the plaintexts of a and b.
	Add(a, b Ciphertext) (Ciphertext, error)

	// Sub returns a ciphertext of the difference of the plaintexts of a and b.
	Sub(a, b Ciphertext) (Ciphertext, error)

	// RequestDecryption hands the ciphertexts to the decryption oracle and
	// returns the identifier the oracle will answer with. It must not block
	// on the decryption itself.
	RequestDecryption(ctx context.Context, cts []Ciphertext) (uint64, error)
}

// DecryptionRequester is the oracle-facing half of the engine.
type DecryptionRequester interface {
	RequestDecryption(ctx context.Context, cts []Ciphertext) (uint64, error)
}

// ExternalInput is a value encrypted off-ledger together with the proof that
// it was produced for this ledger and submitter.
type ExternalInput struct {
	Ciphertext []byte `json:"ciphertext"`
	Proof      []byte `json:"proof"`
}
