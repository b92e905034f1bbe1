// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import "github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"

// Aggregate is the running encrypted sum of the active entries of a scope.
// A record exists only while Count > 0.
type Aggregate struct {
	Subject string         `json:"subject,omitempty"`
	Sum     fhe.Ciphertext `json:"sum"`
	Count   uint32         `json:"count"`
}

func (s *State) GetAggregate(scope Scope) (*Aggregate, error) {
	return getJSON[Aggregate](s.aggregates, scope.Key(), ErrAggregateNotFound)
}

// PutAggregate stores agg, or deletes the record when its count is zero.
func (s *State) PutAggregate(scope Scope, agg *Aggregate) error {
	if agg.Count == 0 {
		return s.aggregates.Delete(scope.Key())
	}
	return putJSON(s.aggregates, scope.Key(), agg)
}

// Subjects returns every subject aggregate currently present.
func (s *State) Subjects() ([]*Aggregate, error) {
	it := s.aggregates.NewIteratorWithPrefix([]byte{1})
	defer it.Release()

	var out []*Aggregate
	for it.Next() {
		agg, err := decodeJSON[Aggregate](it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, it.Error()
}
