// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"fmt"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/ledger"
)

// JSON-RPC error codes of the rating service. Invalid caller input uses
// json2.E_BAD_PARAMS and anything unclassified json2.E_SERVER.
const (
	CodeConflict     json2.ErrorCode = -32010
	CodeCorrelation  json2.ErrorCode = -32011
	CodeUnauthorized json2.ErrorCode = -32012
	CodeNotFound     json2.ErrorCode = -32013
)

func rpcError(err error) error {
	if err == nil {
		return nil
	}
	code := json2.E_SERVER
	switch {
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		code = CodeUnauthorized
	case errors.Is(err, ledger.ErrUnknownEntry):
		code = CodeNotFound
	case ledger.IsValidation(err):
		code = json2.E_BAD_PARAMS
	case ledger.IsConflict(err):
		code = CodeConflict
	case ledger.IsCorrelation(err):
		code = CodeCorrelation
	}
	return &json2.Error{
		Code:    code,
		Message: err.Error(),
	}
}

func badParams(field string, err error) error {
	return &json2.Error{
		Code:    json2.E_BAD_PARAMS,
		Message: fmt.Sprintf("invalid %s: %s", field, err),
	}
}
