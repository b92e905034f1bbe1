// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/nbutton23/zxcvbn-go"
)

const (
	MemDB    = "memdb"
	BadgerDB = "badgerdb"

	minSecretScore = 3
)

var (
	ErrInvalidCommittee = errors.New("invalid committee configuration")
	ErrInvalidKeyBits   = errors.New("invalid key size configuration")
	ErrInvalidDatabase  = errors.New("invalid database configuration")
	ErrInvalidRelayer   = errors.New("invalid relayer configuration")
	ErrInvalidPrincipal = errors.New("invalid principal configuration")
	ErrInvalidListen    = errors.New("invalid listen configuration")
)

// Config holds configuration for the rating VM.
type Config struct {
	// HTTP settings
	ListenAddress  string   `json:"listenAddress"`  // Default: 127.0.0.1:9650
	AllowedOrigins []string `json:"allowedOrigins"` // CORS origins
	AllowedHosts   []string `json:"allowedHosts"`   // Host header allowlist, "*" allows any
	JWTSecret      string   `json:"jwtSecret"`      // HS256 secret, empty uses a random per-process secret

	// Storage configuration
	DBBackend   string `json:"dbBackend"` // memdb or badgerdb
	DBPath      string `json:"dbPath"`
	JournalPath string `json:"journalPath"` // empty disables the event journal

	// Decryption committee
	KeyBits            int `json:"keyBits"`            // Paillier modulus size
	CommitteeSize      int `json:"committeeSize"`      // Default: 3
	CommitteeThreshold int `json:"committeeThreshold"` // Default: 2

	// Relayer configuration
	QueueSize int `json:"queueSize"`
	Workers   int `json:"workers"`

	// Ledger configuration
	Principal        string `json:"principal"` // ShortID of the stats principal
	MaxSubjectLength int    `json:"maxSubjectLength"`
	EntryCacheSize   int    `json:"entryCacheSize"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddress:      "127.0.0.1:9650",
		AllowedOrigins:     []string{"*"},
		AllowedHosts:       []string{"localhost"},
		DBBackend:          MemDB,
		KeyBits:            2048,
		CommitteeSize:      3,
		CommitteeThreshold: 2,
		QueueSize:          256,
		Workers:            2,
		MaxSubjectLength:   100,
		EntryCacheSize:     1024,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return ErrInvalidListen
	}

	switch c.DBBackend {
	case MemDB:
	case BadgerDB:
		if c.DBPath == "" {
			return fmt.Errorf("%w: %s requires dbPath", ErrInvalidDatabase, c.DBBackend)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidDatabase, c.DBBackend)
	}

	if c.KeyBits < 512 || c.KeyBits%8 != 0 {
		return ErrInvalidKeyBits
	}
	if c.CommitteeSize <= 0 || c.CommitteeSize > 255 {
		return ErrInvalidCommittee
	}
	if c.CommitteeThreshold <= 0 || c.CommitteeThreshold > c.CommitteeSize {
		return ErrInvalidCommittee
	}

	if c.QueueSize <= 0 || c.Workers <= 0 {
		return ErrInvalidRelayer
	}

	if _, err := c.PrincipalID(); err != nil {
		return err
	}
	return nil
}

// PrincipalID returns the configured principal, or ids.ShortEmpty when none
// is set.
func (c *Config) PrincipalID() (ids.ShortID, error) {
	if c.Principal == "" {
		return ids.ShortEmpty, nil
	}
	id, err := ids.ShortFromString(c.Principal)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", ErrInvalidPrincipal, err)
	}
	return id, nil
}

// WeakSecret reports whether JWTSecret is set but easy to guess, along with
// its zxcvbn score from 0 to 4.
func (c *Config) WeakSecret() (bool, int) {
	if c.JWTSecret == "" {
		return false, 0
	}
	score := zxcvbn.PasswordStrength(c.JWTSecret, nil).Score
	return score < minSecretScore, score
}

// ParseConfig parses configuration from JSON bytes.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
