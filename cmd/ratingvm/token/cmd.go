// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/luxfi/ids"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/api"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/config"
)

const (
	ConfigFileKey = "config-file"
	SecretKey     = "secret"
	CallerKey     = "caller"
	TTLKey        = "ttl"
	OutKey        = "out"

	tokenFilePerms = 0o600
)

var errMissingSecret = errors.New("no token secret configured")

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "token",
		Short: "Mints a caller token for the JSON-RPC API",
		RunE:  tokenFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "JSON config file whose jwtSecret signs the token")
	flags.String(SecretKey, "", "Token secret, overrides the config file")
	flags.String(CallerKey, "", "Caller short ID, random when empty")
	flags.Duration(TTLKey, 24*time.Hour, "Token lifetime, 0 for no expiry")
	flags.String(OutKey, "", "File the token is written to, replaced atomically")
}

func tokenFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		return err
	}

	secret, err := flags.GetString(SecretKey)
	if err != nil {
		return err
	}
	if secret == "" {
		configFile, err := flags.GetString(ConfigFileKey)
		if err != nil {
			return err
		}
		if configFile != "" {
			configBytes, err := os.ReadFile(configFile)
			if err != nil {
				return err
			}
			cfg, err := config.ParseConfig(configBytes)
			if err != nil {
				return err
			}
			secret = cfg.JWTSecret
		}
	}
	if secret == "" {
		return errMissingSecret
	}

	callerStr, err := flags.GetString(CallerKey)
	if err != nil {
		return err
	}
	var caller ids.ShortID
	if callerStr == "" {
		if _, err := rand.Read(caller[:]); err != nil {
			return err
		}
	} else {
		caller, err = ids.ShortFromString(callerStr)
		if err != nil {
			return err
		}
	}

	ttl, err := flags.GetDuration(TTLKey)
	if err != nil {
		return err
	}

	token, err := api.NewAuthenticator([]byte(secret)).Issue(caller, ttl)
	if err != nil {
		return err
	}

	out, err := flags.GetString(OutKey)
	if err != nil {
		return err
	}
	if out != "" {
		if err := renameio.WriteFile(out, []byte(token), tokenFilePerms); err != nil {
			return fmt.Errorf("failed to write token: %w", err)
		}
		fmt.Fprintf(c.OutOrStdout(), "caller: %s\ntoken: %s\n", caller, out)
		return nil
	}
	fmt.Fprintf(c.OutOrStdout(), "caller: %s\ntoken: %s\n", caller, token)
	return nil
}
