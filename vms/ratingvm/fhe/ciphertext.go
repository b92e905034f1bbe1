// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"bytes"

	"github.com/luxfi/ids"
	"github.com/zeebo/blake3"
)

// Ciphertext is an opaque encrypted value. Its encoding is owned by the
// engine that produced it.
type Ciphertext []byte

// Handle returns the content address of the ciphertext. Access grants and
// API responses refer to ciphertexts by handle.
func (c Ciphertext) Handle() ids.ID {
	return ids.ID(blake3.Sum256(c))
}

// IsEmpty reports whether c holds no ciphertext at all.
func (c Ciphertext) IsEmpty() bool {
	return len(c) == 0
}

// Equal reports whether c and o are byte-identical.
func (c Ciphertext) Equal(o Ciphertext) bool {
	return bytes.Equal(c, o)
}

// Clone returns a copy of c that does not alias its backing array.
func (c Ciphertext) Clone() Ciphertext {
	if c == nil {
		return nil
	}
	out := make(Ciphertext, len(c))
	copy(out, c)
	return out
}
