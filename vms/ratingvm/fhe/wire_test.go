// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"crypto/rand"
	"math"
	"testing"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/stretchr/testify/require"
)

func TestDecodeCleartext(t *testing.T) {
	overflow := make([]byte, CleartextSize)
	overflow[CleartextSize-9] = 1

	tests := []struct {
		name        string
		in          []byte
		expected    uint64
		expectedErr error
	}{
		{
			name:     "zero",
			in:       make([]byte, CleartextSize),
			expected: 0,
		},
		{
			name:     "small",
			in:       EncodeCleartext(16),
			expected: 16,
		},
		{
			name:     "max",
			in:       EncodeCleartext(math.MaxUint64),
			expected: math.MaxUint64,
		},
		{
			name:        "empty",
			in:          nil,
			expectedErr: ErrMalformedCleartext,
		},
		{
			name:        "short",
			in:          make([]byte, 8),
			expectedErr: ErrMalformedCleartext,
		},
		{
			name:        "long",
			in:          make([]byte, CleartextSize+1),
			expectedErr: ErrMalformedCleartext,
		},
		{
			name:        "overflow",
			in:          overflow,
			expectedErr: ErrMalformedCleartext,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			v, err := DecodeCleartext(test.in)
			require.ErrorIs(err, test.expectedErr)
			require.Equal(test.expected, v)
		})
	}
}

func TestVerifyAttestations(t *testing.T) {
	const requestID = 42
	cleartext := EncodeCleartext(16)

	keys := make([]ed25519.PublicKey, 3)
	privs := make([]ed25519.PrivateKey, 3)
	for i := range keys {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		keys[i], privs[i] = pub, priv
	}
	att := func(i uint8) []byte {
		return NewAttestation(i, privs[i], requestID, cleartext)
	}

	tests := []struct {
		name         string
		attestations [][]byte
		cleartext    []byte
		expectedErr  error
	}{
		{
			name:         "threshold met",
			attestations: [][]byte{att(0), att(2)},
			cleartext:    cleartext,
		},
		{
			name:         "all signers",
			attestations: [][]byte{att(2), att(1), att(0)},
			cleartext:    cleartext,
		},
		{
			name:         "below threshold",
			attestations: [][]byte{att(1)},
			cleartext:    cleartext,
			expectedErr:  ErrInvalidAttestation,
		},
		{
			name:         "duplicate signer",
			attestations: [][]byte{att(1), att(1)},
			cleartext:    cleartext,
			expectedErr:  ErrInvalidAttestation,
		},
		{
			name:         "different cleartext",
			attestations: [][]byte{att(0), att(1)},
			cleartext:    EncodeCleartext(17),
			expectedErr:  ErrInvalidAttestation,
		},
		{
			name:         "unknown signer",
			attestations: [][]byte{att(0), append([]byte{7}, att(1)[1:]...)},
			cleartext:    cleartext,
			expectedErr:  ErrInvalidAttestation,
		},
		{
			name:         "truncated",
			attestations: [][]byte{att(0), att(1)[:10]},
			cleartext:    cleartext,
			expectedErr:  ErrInvalidAttestation,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := VerifyAttestations(keys, 2, requestID, test.cleartext, test.attestations)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestCiphertextHandle(t *testing.T) {
	require := require.New(t)

	a := Ciphertext{1, 2, 3}
	b := a.Clone()
	require.True(a.Equal(b))
	require.Equal(a.Handle(), b.Handle())

	b[0] = 9
	require.False(a.Equal(b))
	require.NotEqual(a.Handle(), b.Handle())

	require.True(Ciphertext(nil).IsEmpty())
	require.Nil(Ciphertext(nil).Clone())
}
