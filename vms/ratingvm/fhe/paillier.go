// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"context"
	"fmt"
	"math/big"

	"github.com/luxfi/ids"
	"github.com/niclabs/tcpaillier"
)

var (
	_ Engine = (*PaillierEngine)(nil)

	bigOne = big.NewInt(1)
)

// PaillierEngine implements Engine with additively homomorphic (threshold)
// Paillier encryption. Ciphertexts are big-endian integers in Z*_{N^2},
// left-padded to the byte length of N^2.
type PaillierEngine struct {
	pk        *tcpaillier.PubKey
	nSquared  *big.Int
	minusOne  *big.Int
	size      int
	verifier  *InputVerifier
	requester DecryptionRequester
}

// NewPaillierEngine returns an engine over pk. Inputs are checked with
// verifier and decryptions are forwarded to requester.
func NewPaillierEngine(pk *tcpaillier.PubKey, verifier *InputVerifier, requester DecryptionRequester) *PaillierEngine {
	nSquared := new(big.Int).Mul(pk.N, pk.N)
	return &PaillierEngine{
		pk:        pk,
		nSquared:  nSquared,
		minusOne:  new(big.Int).Sub(pk.N, bigOne),
		size:      (nSquared.BitLen() + 7) / 8,
		verifier:  verifier,
		requester: requester,
	}
}

// PublicKey returns the Paillier public key inputs must be encrypted under.
func (e *PaillierEngine) PublicKey() *tcpaillier.PubKey {
	return e.pk
}

// CiphertextSize is the encoded length of every ciphertext of this engine.
func (e *PaillierEngine) CiphertextSize() int {
	return e.size
}

func (e *PaillierEngine) FromExternal(input ExternalInput, submitter ids.ShortID) (Ciphertext, error) {
	if err := e.verifier.Verify(submitter, input.Ciphertext, input.Proof); err != nil {
		return nil, err
	}
	c, err := e.decode(input.Ciphertext)
	if err != nil {
		return nil, err
	}
	return e.encode(c), nil
}

func (e *PaillierEngine) Add(a, b Ciphertext) (Ciphertext, error) {
	x, err := e.decode(a)
	if err != nil {
		return nil, err
	}
	y, err := e.decode(b)
	if err != nil {
		return nil, err
	}
	sum, err := e.pk.Add(x, y)
	if err != nil {
		return nil, fmt.Errorf("paillier add: %w", err)
	}
	return e.encode(sum), nil
}

// Sub computes a - b as a + (N-1)*b, which is a - b mod N.
func (e *PaillierEngine) Sub(a, b Ciphertext) (Ciphertext, error) {
	x, err := e.decode(a)
	if err != nil {
		return nil, err
	}
	y, err := e.decode(b)
	if err != nil {
		return nil, err
	}
	negated, _, err := e.pk.Multiply(y, e.minusOne)
	if err != nil {
		return nil, fmt.Errorf("paillier negate: %w", err)
	}
	diff, err := e.pk.Add(x, negated)
	if err != nil {
		return nil, fmt.Errorf("paillier add: %w", err)
	}
	return e.encode(diff), nil
}

func (e *PaillierEngine) RequestDecryption(ctx context.Context, cts []Ciphertext) (uint64, error) {
	if e.requester == nil {
		return 0, ErrRequesterUnavailable
	}
	if len(cts) == 0 {
		return 0, ErrNoCiphertexts
	}
	for _, ct := range cts {
		if _, err := e.decode(ct); err != nil {
			return 0, err
		}
	}
	return e.requester.RequestDecryption(ctx, cts)
}

// Encrypt encrypts value under the engine's public key. It is the client
// side of the protocol and never runs inside a ledger transaction.
func (e *PaillierEngine) Encrypt(value uint64) (Ciphertext, error) {
	c, _, err := e.pk.Encrypt(new(big.Int).SetUint64(value))
	if err != nil {
		return nil, fmt.Errorf("paillier encrypt: %w", err)
	}
	return e.encode(c), nil
}

// Integer returns the ciphertext as an element of Z*_{N^2}.
func (e *PaillierEngine) Integer(ct Ciphertext) (*big.Int, error) {
	return e.decode(ct)
}

func (e *PaillierEngine) encode(c *big.Int) Ciphertext {
	return c.FillBytes(make([]byte, e.size))
}

func (e *PaillierEngine) decode(ct []byte) (*big.Int, error) {
	if len(ct) != e.size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedCiphertext, e.size, len(ct))
	}
	c := new(big.Int).SetBytes(ct)
	if c.Sign() <= 0 || c.Cmp(e.nSquared) >= 0 {
		return nil, fmt.Errorf("%w: out of range", ErrMalformedCiphertext)
	}
	if new(big.Int).GCD(nil, nil, c, e.pk.N).Cmp(bigOne) != 0 {
		return nil, fmt.Errorf("%w: not invertible", ErrMalformedCiphertext)
	}
	return c, nil
}
