// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/config"
)

func TestParseFlags(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(os.WriteFile(path, []byte(`{"listenAddress":"127.0.0.1:7000","workers":3}`), 0o600))

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddFlags(flags)
	cfg, err := ParseFlags(flags, []string{
		"--" + ConfigFileKey, path,
		"--" + JournalKey, "/tmp/journal",
		"--" + ShutdownTimeoutKey, "3s",
	})
	require.NoError(err)
	require.Equal("127.0.0.1:7000", cfg.VM.ListenAddress)
	require.Equal(3, cfg.VM.Workers)
	require.Equal("/tmp/journal", cfg.VM.JournalPath)
	require.Equal(3*time.Second, cfg.ShutdownTimeout)
	require.False(cfg.Profiler.Enabled)
}

func TestParseFlagsOverridesListen(t *testing.T) {
	require := require.New(t)

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddFlags(flags)
	cfg, err := ParseFlags(flags, []string{"--" + ListenKey, ":8080"})
	require.NoError(err)
	require.Equal(":8080", cfg.VM.ListenAddress)
	require.Equal(config.DefaultConfig().KeyBits, cfg.VM.KeyBits)
}

func TestParseFlagsMissingFile(t *testing.T) {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddFlags(flags)
	_, err := ParseFlags(flags, []string{"--" + ConfigFileKey, filepath.Join(t.TempDir(), "missing.json")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseFlagsProfiler(t *testing.T) {
	require := require.New(t)

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddFlags(flags)
	cfg, err := ParseFlags(flags, []string{
		"--" + ProfileDirKey, "/tmp/profiles",
		"--" + ProfileFreqKey, "1m",
		"--" + ProfileMaxFilesKey, "2",
	})
	require.NoError(err)
	require.True(cfg.Profiler.Enabled)
	require.Equal("/tmp/profiles", cfg.Profiler.Dir)
	require.Equal(time.Minute, cfg.Profiler.Freq)
	require.Equal(2, cfg.Profiler.MaxNumFiles)

	flags = pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddFlags(flags)
	_, err = ParseFlags(flags, []string{
		"--" + ProfileDirKey, "/tmp/profiles",
		"--" + ProfileMaxFilesKey, "0",
	})
	require.ErrorIs(err, errInvalidProfiler)
}
