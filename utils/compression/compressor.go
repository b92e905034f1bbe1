// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package compression compresses journal records.
package compression

import "errors"

var (
	ErrInvalidMaxSize          = errors.New("invalid compressor max size")
	ErrDecompressedMsgTooLarge = errors.New("decompressed msg too large")
	ErrMsgTooLarge             = errors.New("msg too large to be compressed")
)

// Compressor compresses and decompresses messages up to a bounded size.
type Compressor interface {
	Compress([]byte) ([]byte, error)
	Decompress([]byte) ([]byte, error)
}
