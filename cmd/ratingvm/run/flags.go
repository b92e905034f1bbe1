// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/SolomonMacAdam/crypt-seal-vault/utils/profiler"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/config"
)

const (
	ConfigFileKey      = "config-file"
	ListenKey          = "listen"
	JournalKey         = "journal"
	ShutdownTimeoutKey = "shutdown-timeout"
	ProfileDirKey      = "profile-dir"
	ProfileFreqKey     = "profile-freq"
	ProfileMaxFilesKey = "profile-max-files"
)

var errInvalidProfiler = errors.New("profile frequency and file count must be positive")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "JSON config file of the VM")
	flags.String(ListenKey, "", "Address to serve JSON-RPC on, overrides the config file")
	flags.String(JournalKey, "", "Event journal directory, overrides the config file")
	flags.Duration(ShutdownTimeoutKey, 10*time.Second, "Time allowed for in-flight requests on shutdown")
	flags.String(ProfileDirKey, "", "Directory for rotating CPU, heap, mutex and goroutine profiles, empty disables profiling")
	flags.Duration(ProfileFreqKey, 15*time.Minute, "How often a new set of profiles is written")
	flags.Int(ProfileMaxFilesKey, 5, "Number of rotated profiles kept per kind")
}

type Config struct {
	VM              config.Config
	ShutdownTimeout time.Duration
	Profiler        profiler.Config
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	var configBytes []byte
	if configFile != "" {
		configBytes, err = os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
	}
	vmConfig, err := config.ParseConfig(configBytes)
	if err != nil {
		return nil, err
	}

	listen, err := flags.GetString(ListenKey)
	if err != nil {
		return nil, err
	}
	if listen != "" {
		vmConfig.ListenAddress = listen
	}

	journal, err := flags.GetString(JournalKey)
	if err != nil {
		return nil, err
	}
	if journal != "" {
		vmConfig.JournalPath = journal
	}

	shutdownTimeout, err := flags.GetDuration(ShutdownTimeoutKey)
	if err != nil {
		return nil, err
	}

	profileDir, err := flags.GetString(ProfileDirKey)
	if err != nil {
		return nil, err
	}
	profileFreq, err := flags.GetDuration(ProfileFreqKey)
	if err != nil {
		return nil, err
	}
	profileMaxFiles, err := flags.GetInt(ProfileMaxFilesKey)
	if err != nil {
		return nil, err
	}
	if profileDir != "" && (profileFreq <= 0 || profileMaxFiles <= 0) {
		return nil, errInvalidProfiler
	}

	return &Config{
		VM:              vmConfig,
		ShutdownTimeout: shutdownTimeout,
		Profiler: profiler.Config{
			Dir:         profileDir,
			Enabled:     profileDir != "",
			Freq:        profileFreq,
			MaxNumFiles: profileMaxFiles,
		},
	}, nil
}
