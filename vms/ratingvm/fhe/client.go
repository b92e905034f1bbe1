// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import "github.com/luxfi/ids"

// Client encrypts ratings off-ledger and attaches their input proofs.
type Client struct {
	engine *PaillierEngine
	signer *InputSigner
}

func NewClient(engine *PaillierEngine, signer *InputSigner) *Client {
	return &Client{
		engine: engine,
		signer: signer,
	}
}

// Seal encrypts value for submitter.
func (c *Client) Seal(submitter ids.ShortID, value uint64) (ExternalInput, error) {
	ct, err := c.engine.Encrypt(value)
	if err != nil {
		return ExternalInput{}, err
	}
	return ExternalInput{
		Ciphertext: ct,
		Proof:      c.signer.Prove(submitter, ct),
	}, nil
}
