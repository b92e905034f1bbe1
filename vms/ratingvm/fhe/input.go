// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/luxfi/ids"
	"github.com/zeebo/blake3"
)

const inputDomain = "crypt-seal-vault/input/v1"

// InputVerifier checks input proofs. A proof is the input verifier's
// signature over the ciphertext bound to the ledger and the submitter, so a
// ciphertext accepted for one submitter cannot be replayed by another.
type InputVerifier struct {
	ledger ids.ShortID
	key    ed25519.PublicKey
}

// NewInputVerifier returns a verifier for proofs issued to ledger by the
// holder of key.
func NewInputVerifier(ledger ids.ShortID, key ed25519.PublicKey) *InputVerifier {
	return &InputVerifier{
		ledger: ledger,
		key:    key,
	}
}

// Verify returns ErrInvalidProof unless proof is a valid signature over
// ciphertext for submitter.
func (v *InputVerifier) Verify(submitter ids.ShortID, ciphertext, proof []byte) error {
	if len(proof) != ed25519.SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidProof, ed25519.SignatureSize, len(proof))
	}
	if !ed25519.Verify(v.key, inputDigest(v.ledger, submitter, ciphertext), proof) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidProof)
	}
	return nil
}

// InputSigner issues input proofs. It runs wherever encrypted inputs are
// checked before they reach the ledger.
type InputSigner struct {
	ledger ids.ShortID
	key    ed25519.PrivateKey
}

func NewInputSigner(ledger ids.ShortID, key ed25519.PrivateKey) *InputSigner {
	return &InputSigner{
		ledger: ledger,
		key:    key,
	}
}

// Prove returns the proof binding ciphertext to submitter.
func (s *InputSigner) Prove(submitter ids.ShortID, ciphertext []byte) []byte {
	return ed25519.Sign(s.key, inputDigest(s.ledger, submitter, ciphertext))
}

func inputDigest(ledger, submitter ids.ShortID, ciphertext []byte) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte(inputDomain))
	_, _ = h.Write(ledger[:])
	_, _ = h.Write(submitter[:])
	_, _ = h.Write(ciphertext)
	return h.Sum(nil)
}
