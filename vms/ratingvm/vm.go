// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ratingvm implements the rating VM: an append-only ledger of
// encrypted ratings whose per-subject and global averages are published only
// through threshold decryption by an oracle committee.
package ratingvm

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/gorilla/rpc/v2"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/utils/json"

	vault "github.com/SolomonMacAdam/crypt-seal-vault"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/api"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/config"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/journal"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/ledger"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/metrics"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/oracle"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

const (
	// Version of the rating VM
	Version = "1.0.0"

	// VMID is the unique identifier for the rating VM
	VMID = "ratingvm"
)

var (
	_ vault.VM = (*VM)(nil)

	errVMShutdown      = errors.New("VM is shutting down")
	errNotInitialized  = errors.New("VM is not initialized")
	errCorruptKeys     = errors.New("stored keys are corrupt")
	ErrKeyMismatch     = errors.New("database holds ratings sealed under other keys")
	ErrJournalMismatch = errors.New("journal is ahead of the ledger")
)

// VM wires the ledger to its decryption committee, event journal and
// JSON-RPC surface.
type VM struct {
	config.Config

	log log.Logger
	ctx context.Context

	cancel context.CancelFunc

	db      database.Database
	ownsDB  bool
	journal *journal.Journal

	ledgerID  ids.ShortID
	inputKey  ed25519.PrivateKey
	principal ids.ShortID
	committee *oracle.Committee
	relayer   *oracle.Relayer
	engine    *fhe.PaillierEngine
	signer    *fhe.InputSigner
	ledger    *ledger.Ledger
	auth      *api.Authenticator

	registry metric.Registry
	metrics  metrics.Metrics

	// HTTP service
	rpcServer *rpc.Server

	wake     chan struct{}
	followWG sync.WaitGroup

	// Lifecycle
	status       vault.State
	shutdownLock sync.RWMutex
}

// Initialize parses configBytes and starts the VM over db. When db is nil
// the database named by the configuration is opened and owned by the VM.
func (vm *VM) Initialize(ctx context.Context, db database.Database, configBytes []byte) (err error) {
	if len(configBytes) > 0 {
		cfg, err := config.ParseConfig(configBytes)
		if err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		vm.Config = cfg
	} else if vm.Config.ListenAddress == "" {
		vm.Config = config.DefaultConfig()
	}
	if err := vm.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if vm.log == nil {
		vm.log = log.NewNoOpLogger()
	}

	if db == nil {
		opened, err := vm.openDatabase()
		if err != nil {
			return err
		}
		db = opened
		vm.ownsDB = true
	}
	vm.db = db
	defer func() {
		if err != nil && vm.ownsDB {
			_ = vm.db.Close()
			vm.db = nil
			vm.ownsDB = false
		}
	}()

	if err := vm.initializeKeys(); err != nil {
		return err
	}
	principal, err := vm.Config.PrincipalID()
	if err != nil {
		return err
	}
	if principal == ids.ShortEmpty {
		principal = vm.ledgerID
	}
	vm.principal = principal

	vm.registry = metric.NewRegistry()
	vm.metrics, err = metrics.New(vm.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	inputPub, ok := vm.inputKey.Public().(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("%w: input key", errCorruptKeys)
	}
	committee := vm.committee
	vm.signer = fhe.NewInputSigner(vm.ledgerID, vm.inputKey)
	vm.relayer = oracle.NewRelayer(vm.log, committee, vm.QueueSize)
	vm.engine = fhe.NewPaillierEngine(
		committee.PublicKey(),
		fhe.NewInputVerifier(vm.ledgerID, inputPub),
		vm.relayer,
	)

	vm.ledger, err = ledger.New(vm.log, db, vm.engine, ledger.Config{
		Principal:            vm.principal,
		MaxSubjectLength:     vm.MaxSubjectLength,
		AttestationKeys:      committee.AttestationKeys(),
		AttestationThreshold: committee.Threshold(),
		EntryCacheSize:       vm.EntryCacheSize,
	}, ledger.WithMetrics(vm.metrics))
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	vm.relayer.SetCallback(vm.ledger.Callback)

	secret := []byte(vm.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate token secret: %w", err)
		}
		vm.log.Warn("no jwtSecret configured, tokens are only valid for this process")
	} else if weak, score := vm.WeakSecret(); weak {
		vm.log.Warn("jwtSecret is easy to guess",
			log.Int("score", score),
		)
	}
	vm.auth = api.NewAuthenticator(secret)

	vm.ctx, vm.cancel = context.WithCancel(ctx)
	if err := vm.initializeJournal(); err != nil {
		vm.cancel()
		return err
	}
	vm.relayer.Start(vm.ctx, vm.Workers)

	if err := vm.initializeHTTPHandlers(); err != nil {
		vm.relayer.Stop()
		vm.cancel()
		return fmt.Errorf("failed to initialize HTTP handlers: %w", err)
	}

	vm.shutdownLock.Lock()
	vm.status = vault.NormalOp
	vm.shutdownLock.Unlock()

	vm.log.Info("rating VM initialized",
		log.String("version", Version),
		log.Stringer("ledger", vm.ledgerID),
		log.Stringer("principal", vm.principal),
		log.Int("committeeSize", committee.Size()),
		log.Int("committeeThreshold", committee.Threshold()),
		log.String("dbBackend", vm.DBBackend),
		log.Bool("journal", vm.JournalPath != ""),
	)
	return nil
}

func (vm *VM) openDatabase() (database.Database, error) {
	switch vm.DBBackend {
	case config.BadgerDB:
		db, err := badgerdb.New(vm.DBPath, nil, VMID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open badgerdb at %s: %w", vm.DBPath, err)
		}
		return db, nil
	default:
		return memdb.New(), nil
	}
}

// ledgerKeys is the key material stored ciphertexts, input proofs and
// attestations are bound to. It is dealt once per database.
type ledgerKeys struct {
	LedgerID  ids.ShortID        `json:"ledgerID"`
	InputKey  ed25519.PrivateKey `json:"inputKey"`
	Committee *oracle.Keys       `json:"committee"`
}

// initializeKeys restores the keys stored in the database, or deals and
// stores new ones for a database without ratings.
func (vm *VM) initializeKeys() error {
	s := state.New(vm.db)
	var keys ledgerKeys
	found, err := s.Keys(&keys)
	if err != nil {
		return err
	}
	if !found {
		last, err := s.LastEntryID()
		if err != nil {
			return err
		}
		if last > 0 {
			return fmt.Errorf("%w: %d entries without stored keys", ErrKeyMismatch, last)
		}
		return vm.dealKeys(s)
	}

	if len(keys.InputKey) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: input key", errCorruptKeys)
	}
	committee, err := oracle.RestoreCommittee(keys.Committee)
	if err != nil {
		return fmt.Errorf("%w: %w", errCorruptKeys, err)
	}
	if committee.Size() != vm.CommitteeSize || committee.Threshold() != vm.CommitteeThreshold {
		return fmt.Errorf("%w: stored committee is %d-of-%d, configured %d-of-%d",
			ErrKeyMismatch,
			committee.Threshold(), committee.Size(),
			vm.CommitteeThreshold, vm.CommitteeSize,
		)
	}
	vm.ledgerID = keys.LedgerID
	vm.inputKey = keys.InputKey
	vm.committee = committee
	vm.log.Info("restored ledger keys",
		log.Stringer("ledger", vm.ledgerID),
		log.Int("keyBits", committee.PublicKey().N.BitLen()),
	)
	return nil
}

func (vm *VM) dealKeys(s *state.State) error {
	committee, err := oracle.NewCommittee(vm.KeyBits, vm.CommitteeSize, vm.CommitteeThreshold)
	if err != nil {
		return fmt.Errorf("failed to deal committee key: %w", err)
	}
	_, inputKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate input key: %w", err)
	}
	var ledgerID ids.ShortID
	if _, err := rand.Read(ledgerID[:]); err != nil {
		return fmt.Errorf("failed to generate ledger id: %w", err)
	}

	if err := s.PutKeys(&ledgerKeys{
		LedgerID:  ledgerID,
		InputKey:  inputKey,
		Committee: committee.Keys(),
	}); err != nil {
		return fmt.Errorf("failed to store keys: %w", err)
	}
	vm.ledgerID = ledgerID
	vm.inputKey = inputKey
	vm.committee = committee
	return nil
}

func (vm *VM) initializeJournal() error {
	if vm.JournalPath == "" {
		return nil
	}
	j, err := journal.Open(vm.log, vm.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	journaled, err := j.Last()
	if err != nil {
		_ = j.Close()
		return err
	}
	committed, err := vm.ledger.LastEventSeq()
	if err != nil {
		_ = j.Close()
		return err
	}
	if journaled > committed {
		_ = j.Close()
		return fmt.Errorf("%w: journal at %d, ledger at %d", ErrJournalMismatch, journaled, committed)
	}
	vm.journal = j

	vm.wake = make(chan struct{}, 1)
	vm.ledger.Subscribe(func([]*state.Event) {
		select {
		case vm.wake <- struct{}{}:
		default:
		}
	})
	vm.followWG.Add(1)
	go func() {
		defer vm.followWG.Done()
		if err := j.Follow(vm.ctx, vm.ledger, vm.wake); err != nil {
			vm.log.Error("event journal stopped", log.Err(err))
		}
	}()
	return nil
}

func (vm *VM) initializeHTTPHandlers() error {
	vm.rpcServer = rpc.NewServer()
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json")
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	vm.rpcServer.RegisterInterceptFunc(vm.metrics.InterceptRequest)
	vm.rpcServer.RegisterAfterFunc(vm.metrics.AfterRequest)

	service := api.NewService(vm.log, vm.ledger, vm.engine, vm.signer, vm.auth, vm.PublicParams())
	return vm.rpcServer.RegisterService(service, api.Name)
}

// PublicParams returns what clients need to seal ratings for this VM.
func (vm *VM) PublicParams() api.PublicParams {
	return api.PublicParams{
		Ledger:               vm.ledgerID,
		Principal:            vm.principal,
		Modulus:              vm.committee.PublicKey().N.Text(16),
		CiphertextSize:       vm.engine.CiphertextSize(),
		AttestationKeys:      vm.committee.AttestationKeys(),
		AttestationThreshold: vm.committee.Threshold(),
		MaxSubjectLength:     vm.MaxSubjectLength,
	}
}

// Ledger returns the VM's rating ledger.
func (vm *VM) Ledger() *ledger.Ledger {
	return vm.ledger
}

// Authenticator returns the issuer of caller tokens.
func (vm *VM) Authenticator() *api.Authenticator {
	return vm.auth
}

// Client returns an in-process client that seals ratings under the VM's
// key.
func (vm *VM) Client() *fhe.Client {
	return fhe.NewClient(vm.engine, vm.signer)
}

// Shutdown stops the relayer and the journal and closes owned storage.
func (vm *VM) Shutdown(context.Context) error {
	vm.shutdownLock.Lock()
	if vm.status != vault.NormalOp {
		vm.shutdownLock.Unlock()
		return nil
	}
	vm.status = vault.Stopped
	vm.shutdownLock.Unlock()

	vm.log.Info("shutting down rating VM")

	vm.cancel()
	vm.relayer.Stop()
	vm.followWG.Wait()

	var errs []error
	if vm.journal != nil {
		if err := vm.journal.Close(); err != nil {
			vm.log.Error("failed to close journal", log.Err(err))
			errs = append(errs, err)
		}
	}
	if vm.ownsDB {
		if err := vm.db.Close(); err != nil {
			vm.log.Error("failed to close database", log.Err(err))
			errs = append(errs, err)
		}
	}

	vm.log.Info("rating VM shutdown complete")
	return errors.Join(errs...)
}

// Status returns where the VM is in its lifecycle.
func (vm *VM) Status() vault.State {
	vm.shutdownLock.RLock()
	defer vm.shutdownLock.RUnlock()
	return vm.status
}

// Version returns the VM version.
func (*VM) Version(context.Context) (string, error) {
	return Version, nil
}

// HealthCheck returns VM health status.
func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	switch vm.Status() {
	case vault.Created:
		return nil, errNotInitialized
	case vault.Stopped:
		return nil, errVMShutdown
	}

	active, err := vm.ledger.GlobalCount()
	if err != nil {
		return nil, err
	}
	lastEvent, err := vm.ledger.LastEventSeq()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"healthy":       true,
		"status":        vault.NormalOp.String(),
		"version":       Version,
		"activeEntries": active,
		"lastEvent":     lastEvent,
		"journal":       vm.journal != nil,
	}, nil
}

// CreateHandlers returns HTTP handlers for the VM.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	if vm.Status() != vault.NormalOp {
		return nil, errNotInitialized
	}

	return map[string]http.Handler{
		"/rpc": vm.rpcServer,
	}, nil
}
