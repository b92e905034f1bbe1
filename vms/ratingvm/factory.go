// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ratingvm

import (
	"github.com/luxfi/log"

	vault "github.com/SolomonMacAdam/crypt-seal-vault"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/config"
)

var _ vault.Factory = (*Factory)(nil)

// Factory creates rating VM instances.
type Factory struct {
	config.Config
}

// New creates a new rating VM instance.
func (f *Factory) New(logger log.Logger) (interface{}, error) {
	if f.Config.ListenAddress == "" {
		f.Config = config.DefaultConfig()
	}

	if err := f.Config.Validate(); err != nil {
		return nil, err
	}

	return &VM{
		Config: f.Config,
		log:    logger,
	}, nil
}

// NewFactory creates a new rating VM factory with the given configuration.
func NewFactory(cfg config.Config) *Factory {
	return &Factory{Config: cfg}
}

// NewDefaultFactory creates a new rating VM factory with default configuration.
func NewDefaultFactory() *Factory {
	return &Factory{Config: config.DefaultConfig()}
}
