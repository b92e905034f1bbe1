// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// CleartextSize is the width of a decrypted value on the wire: one
// big-endian 256-bit word.
const CleartextSize = 32

var ErrMalformedCleartext = errors.New("malformed cleartext")

// EncodeCleartext returns v as a 32-byte big-endian word.
func EncodeCleartext(v uint64) []byte {
	word := uint256.NewInt(v).Bytes32()
	return word[:]
}

// DecodeCleartext parses a 32-byte big-endian word. Payloads of any other
// length, and values that do not fit in 64 bits, are rejected.
func DecodeCleartext(b []byte) (uint64, error) {
	if len(b) != CleartextSize {
		return 0, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedCleartext, CleartextSize, len(b))
	}
	v := new(uint256.Int).SetBytes(b)
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: value %s overflows uint64", ErrMalformedCleartext, v.Dec())
	}
	return v.Uint64(), nil
}
