// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
)

var keysKey = []byte("keys")

// Keys decodes the key material the stored ciphertexts are bound to into v.
// It reports false when no keys have been stored yet.
func (s *State) Keys(v any) (bool, error) {
	data, err := s.meta.Get(keysKey)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("corrupt keys: %w", err)
	}
	return true, nil
}

// PutKeys stores v as the key material of the ledger.
func (s *State) PutKeys(v any) error {
	return putJSON(s.meta, keysKey, v)
}
