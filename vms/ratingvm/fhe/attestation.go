// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/zeebo/blake3"
)

// AttestationSize is the length of one attestation: the signer's committee
// index followed by its signature.
const AttestationSize = 1 + ed25519.SignatureSize

const attestationDomain = "crypt-seal-vault/attestation/v1"

var ErrInvalidAttestation = errors.New("invalid attestation")

// AttestationDigest is the message each committee member signs when it
// vouches for the cleartext of a decryption request.
func AttestationDigest(requestID uint64, cleartext []byte) []byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], requestID)

	h := blake3.New()
	_, _ = h.Write([]byte(attestationDomain))
	_, _ = h.Write(id[:])
	_, _ = h.Write(cleartext)
	return h.Sum(nil)
}

// NewAttestation signs the cleartext of requestID as committee member index.
func NewAttestation(index uint8, key ed25519.PrivateKey, requestID uint64, cleartext []byte) []byte {
	att := make([]byte, 0, AttestationSize)
	att = append(att, index)
	return append(att, ed25519.Sign(key, AttestationDigest(requestID, cleartext))...)
}

// VerifyAttestations checks that at least threshold distinct committee
// members signed cleartext for requestID. Any malformed or forged
// attestation fails the whole set.
func VerifyAttestations(
	keys []ed25519.PublicKey,
	threshold int,
	requestID uint64,
	cleartext []byte,
	attestations [][]byte,
) error {
	digest := AttestationDigest(requestID, cleartext)
	signers := make(map[uint8]struct{}, len(attestations))
	for i, att := range attestations {
		if len(att) != AttestationSize {
			return fmt.Errorf("%w: attestation %d has %d bytes", ErrInvalidAttestation, i, len(att))
		}
		index := att[0]
		if int(index) >= len(keys) {
			return fmt.Errorf("%w: unknown signer %d", ErrInvalidAttestation, index)
		}
		if _, ok := signers[index]; ok {
			return fmt.Errorf("%w: duplicate signer %d", ErrInvalidAttestation, index)
		}
		if !ed25519.Verify(keys[index], digest, att[1:]) {
			return fmt.Errorf("%w: bad signature from signer %d", ErrInvalidAttestation, index)
		}
		signers[index] = struct{}{}
	}
	if len(signers) < threshold {
		return fmt.Errorf("%w: %d of %d required signers", ErrInvalidAttestation, len(signers), threshold)
	}
	return nil
}
