// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SolomonMacAdam/crypt-seal-vault/cmd/ratingvm/run"
	"github.com/SolomonMacAdam/crypt-seal-vault/cmd/ratingvm/token"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm"
)

func main() {
	cmd := &cobra.Command{
		Use:     "ratingvm",
		Short:   "Runs and administers an encrypted rating ledger",
		Version: ratingvm.Version,
	}
	cmd.AddCommand(
		run.Command(),
		token.Command(),
	)
	cmd.SilenceUsage = true

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
