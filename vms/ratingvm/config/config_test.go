// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	require.Equal("127.0.0.1:9650", cfg.ListenAddress)
	require.Equal(MemDB, cfg.DBBackend)
	require.Equal(3, cfg.CommitteeSize)
	require.Equal(2, cfg.CommitteeThreshold)
	require.NoError(cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	principal := ids.GenerateTestShortID()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "default",
			mutate: func(*Config) {},
		},
		{
			name:    "empty listen address",
			mutate:  func(c *Config) { c.ListenAddress = "" },
			wantErr: ErrInvalidListen,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.DBBackend = "leveldb" },
			wantErr: ErrInvalidDatabase,
		},
		{
			name:    "badgerdb without path",
			mutate:  func(c *Config) { c.DBBackend = BadgerDB },
			wantErr: ErrInvalidDatabase,
		},
		{
			name: "badgerdb with path",
			mutate: func(c *Config) {
				c.DBBackend = BadgerDB
				c.DBPath = "/tmp/ratings"
			},
		},
		{
			name:    "key too small",
			mutate:  func(c *Config) { c.KeyBits = 256 },
			wantErr: ErrInvalidKeyBits,
		},
		{
			name:    "threshold above size",
			mutate:  func(c *Config) { c.CommitteeThreshold = 4 },
			wantErr: ErrInvalidCommittee,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantErr: ErrInvalidRelayer,
		},
		{
			name:    "malformed principal",
			mutate:  func(c *Config) { c.Principal = "not-an-id" },
			wantErr: ErrInvalidPrincipal,
		},
		{
			name:   "principal",
			mutate: func(c *Config) { c.Principal = principal.String() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig(nil)
	require.NoError(err)
	require.Equal(DefaultConfig(), cfg)

	cfg, err = ParseConfig([]byte(`{"keyBits":1024,"workers":4}`))
	require.NoError(err)
	require.Equal(1024, cfg.KeyBits)
	require.Equal(4, cfg.Workers)
	require.Equal(DefaultConfig().QueueSize, cfg.QueueSize)

	_, err = ParseConfig([]byte(`{`))
	require.Error(err)
}

func TestPrincipalID(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	id, err := cfg.PrincipalID()
	require.NoError(err)
	require.Equal(ids.ShortEmpty, id)

	want := ids.GenerateTestShortID()
	cfg.Principal = want.String()
	id, err = cfg.PrincipalID()
	require.NoError(err)
	require.Equal(want, id)
}

func TestWeakSecret(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	weak, _ := cfg.WeakSecret()
	require.False(weak)

	cfg.JWTSecret = "password"
	weak, score := cfg.WeakSecret()
	require.True(weak)
	require.Less(score, minSecretScore)

	cfg.JWTSecret = "q7Zp!v2Lr#9xKe$4Tn@8Wm%1Yb&6Hd*3"
	weak, score = cfg.WeakSecret()
	require.False(weak)
	require.Equal(4, score)
}
