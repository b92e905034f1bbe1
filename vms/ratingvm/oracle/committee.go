// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle is the off-ledger decryption service. A committee holds
// threshold Paillier key shares and an attestation key per member; the
// relayer drains decryption requests and answers them through a callback.
package oracle

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/niclabs/tcpaillier"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
)

const maxCommitteeSize = 255

var (
	ErrInvalidCommittee = errors.New("invalid committee parameters")
	ErrPlaintextTooWide = errors.New("plaintext does not fit in 64 bits")
	ErrInvalidKeys      = errors.New("invalid committee keys")
)

type member struct {
	share  *tcpaillier.KeyShare
	signer ed25519.PrivateKey
}

// Committee decrypts by combining threshold partial decryptions and vouches
// for each result with threshold attestations.
type Committee struct {
	pk        *tcpaillier.PubKey
	nSquared  *big.Int
	threshold int
	members   []member
	keys      []ed25519.PublicKey
}

// NewCommittee deals a fresh key of bits bits to size members, any threshold
// of which can decrypt.
func NewCommittee(bits, size, threshold int) (*Committee, error) {
	if size < 1 || size > maxCommitteeSize || threshold < 1 || threshold > size {
		return nil, fmt.Errorf("%w: size=%d threshold=%d", ErrInvalidCommittee, size, threshold)
	}
	shares, pk, err := tcpaillier.NewKey(bits, 1, uint8(size), uint8(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to deal paillier key: %w", err)
	}

	c := newCommittee(pk, threshold, size)
	for i, share := range shares {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate attestation key: %w", err)
		}
		c.members[i] = member{share: share, signer: priv}
		c.keys[i] = pub
	}
	return c, nil
}

func newCommittee(pk *tcpaillier.PubKey, threshold, size int) *Committee {
	return &Committee{
		pk:        pk,
		nSquared:  new(big.Int).Mul(pk.N, pk.N),
		threshold: threshold,
		members:   make([]member, size),
		keys:      make([]ed25519.PublicKey, size),
	}
}

// Keys is the serializable form of a committee: the shared public key and
// every member's key share and attestation key.
type Keys struct {
	PublicKey *tcpaillier.PubKey `json:"publicKey"`
	Members   []MemberKeys       `json:"members"`
}

type MemberKeys struct {
	Index  uint8              `json:"index"`
	Share  *big.Int           `json:"share"`
	Signer ed25519.PrivateKey `json:"signer"`
}

// Keys exports the key material of c.
func (c *Committee) Keys() *Keys {
	keys := &Keys{
		PublicKey: c.pk,
		Members:   make([]MemberKeys, len(c.members)),
	}
	for i, m := range c.members {
		keys.Members[i] = MemberKeys{
			Index:  m.share.Index,
			Share:  m.share.Si,
			Signer: m.signer,
		}
	}
	return keys
}

// RestoreCommittee rebuilds the committee exported as keys.
func RestoreCommittee(keys *Keys) (*Committee, error) {
	if keys == nil || keys.PublicKey == nil || keys.PublicKey.N == nil {
		return nil, fmt.Errorf("%w: missing public key", ErrInvalidKeys)
	}
	pk := keys.PublicKey
	size, threshold := int(pk.L), int(pk.K)
	if size < 1 || threshold < 1 || threshold > size || len(keys.Members) != size {
		return nil, fmt.Errorf("%w: %d members for a %d-of-%d key", ErrInvalidKeys, len(keys.Members), threshold, size)
	}

	c := newCommittee(pk, threshold, size)
	for i, m := range keys.Members {
		if m.Share == nil || len(m.Signer) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: member %d", ErrInvalidKeys, i)
		}
		pub, ok := m.Signer.Public().(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: member %d", ErrInvalidKeys, i)
		}
		c.members[i] = member{
			share: &tcpaillier.KeyShare{
				PubKey: pk,
				Index:  m.Index,
				Si:     m.Share,
			},
			signer: m.Signer,
		}
		c.keys[i] = pub
	}
	return c, nil
}

func (c *Committee) PublicKey() *tcpaillier.PubKey {
	return c.pk
}

// AttestationKeys returns the verification key of every member, by index.
func (c *Committee) AttestationKeys() []ed25519.PublicKey {
	return c.keys
}

func (c *Committee) Threshold() int {
	return c.threshold
}

func (c *Committee) Size() int {
	return len(c.members)
}

// Decrypt returns the plaintext of ct using threshold members.
func (c *Committee) Decrypt(ct fhe.Ciphertext) (uint64, error) {
	v := new(big.Int).SetBytes(ct)
	if v.Sign() <= 0 || v.Cmp(c.nSquared) >= 0 {
		return 0, fmt.Errorf("%w: out of range", fhe.ErrMalformedCiphertext)
	}

	parts := make([]*tcpaillier.DecryptionShare, 0, c.threshold)
	for _, m := range c.members[:c.threshold] {
		part, err := m.share.PartialDecrypt(v)
		if err != nil {
			return 0, fmt.Errorf("partial decryption failed: %w", err)
		}
		parts = append(parts, part)
	}
	plain, err := c.pk.CombineShares(parts...)
	if err != nil {
		return 0, fmt.Errorf("failed to combine shares: %w", err)
	}
	if !plain.IsUint64() {
		return 0, ErrPlaintextTooWide
	}
	return plain.Uint64(), nil
}

// Attest signs cleartext for requestID with threshold members.
func (c *Committee) Attest(requestID uint64, cleartext []byte) [][]byte {
	attestations := make([][]byte, c.threshold)
	for i, m := range c.members[:c.threshold] {
		attestations[i] = fhe.NewAttestation(uint8(i), m.signer, requestID, cleartext)
	}
	return attestations
}

// Fulfil decrypts cts, adds the plaintexts and returns the total as an
// attested cleartext word.
func (c *Committee) Fulfil(requestID uint64, cts []fhe.Ciphertext) ([]byte, [][]byte, error) {
	if len(cts) == 0 {
		return nil, nil, fhe.ErrNoCiphertexts
	}
	var total uint64
	for _, ct := range cts {
		v, err := c.Decrypt(ct)
		if err != nil {
			return nil, nil, err
		}
		if total+v < total {
			return nil, nil, ErrPlaintextTooWide
		}
		total += v
	}
	cleartext := fhe.EncodeCleartext(total)
	return cleartext, c.Attest(requestID, cleartext), nil
}
