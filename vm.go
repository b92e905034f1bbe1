// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault defines the lifecycle contract of the sealed-data VMs served
// by this module.
package vault

import (
	"context"
	"net/http"

	"github.com/luxfi/database"
)

// VM defines the interface for a virtual machine
type VM interface {
	// Initialize starts the VM over db with the given JSON configuration.
	// A nil db lets the VM open the storage its configuration names.
	Initialize(ctx context.Context, db database.Database, configBytes []byte) error

	// Shutdown cleanly stops the VM
	Shutdown(context.Context) error

	// Version returns the VM version
	Version(context.Context) (string, error)

	// HealthCheck reports the VM's health
	HealthCheck(context.Context) (interface{}, error)

	// CreateHandlers returns the VM's HTTP handlers keyed by path
	CreateHandlers(context.Context) (map[string]http.Handler, error)
}
