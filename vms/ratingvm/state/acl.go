// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import "github.com/luxfi/ids"

var allowed = []byte{1}

func aclKey(handle ids.ID, principal ids.ShortID) []byte {
	key := make([]byte, 0, len(handle)+len(principal))
	key = append(key, handle[:]...)
	return append(key, principal.Bytes()...)
}

// Allow grants principal the right to have the ciphertext with handle
// decrypted.
func (s *State) Allow(handle ids.ID, principal ids.ShortID) error {
	return s.acl.Put(aclKey(handle, principal), allowed)
}

func (s *State) IsAllowed(handle ids.ID, principal ids.ShortID) (bool, error) {
	return s.acl.Has(aclKey(handle, principal))
}
