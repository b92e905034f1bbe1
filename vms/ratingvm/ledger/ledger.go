// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger implements the rating ledger state machine.
//
// Every mutating call runs as one serialized transaction staged in a
// versiondb overlay: it either commits in full or leaves no trace. Aggregates
// are maintained purely with homomorphic addition and subtraction, and
// plaintext statistics are only ever published through the two-phase
// request/callback protocol with the decryption oracle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/luxfi/cache"
	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SolomonMacAdam/crypt-seal-vault/utils/timer/mockable"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/metrics"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/state"
)

const (
	DefaultMaxSubjectLength = 100
	DefaultEntryCacheSize   = 1024
)

var (
	ErrInvalidSubject     = errors.New("invalid subject name")
	ErrInvalidProof       = errors.New("invalid input proof")
	ErrAlreadySubmitted   = errors.New("submitter already has an active entry")
	ErrNoActiveEntry      = errors.New("submitter has no active entry")
	ErrAlreadyFinalized   = errors.New("statistics already finalized")
	ErrDecryptionPending  = errors.New("decryption already requested")
	ErrNoRatings          = errors.New("no ratings in scope")
	ErrNotFinalized       = errors.New("statistics not finalized")
	ErrUnknownRequest     = errors.New("unknown decryption request")
	ErrMalformedCleartext = errors.New("malformed cleartext")
	ErrInvalidAttestation = errors.New("invalid attestation")
	ErrUnknownEntry       = errors.New("unknown entry")
	ErrNotAuthorized      = errors.New("ledger is not allowed to decrypt aggregate")
	ErrTooManyEntries     = errors.New("aggregate count overflow")
	ErrDecryptionFailed   = errors.New("decryption request failed")
	ErrInvalidConfig      = errors.New("invalid ledger config")

	validationErrors  = []error{ErrInvalidSubject, ErrInvalidProof}
	conflictErrors    = []error{ErrAlreadySubmitted, ErrNoActiveEntry, ErrAlreadyFinalized, ErrDecryptionPending, ErrNoRatings, ErrNotFinalized}
	correlationErrors = []error{ErrUnknownRequest, ErrMalformedCleartext, ErrInvalidAttestation}
)

// Config holds the ledger's own parameters.
type Config struct {
	// Principal is the identity the ledger itself acts as when it asks for
	// aggregates to be decrypted.
	Principal ids.ShortID

	MaxSubjectLength int

	// AttestationKeys are the oracle committee's verification keys. When
	// empty, callbacks are accepted without attestations.
	AttestationKeys      []ed25519.PublicKey
	AttestationThreshold int

	EntryCacheSize int
}

// Listener receives the events of every committed transaction, in order.
// It is called after the transaction commits and never under the ledger
// lock.
type Listener func(events []*state.Event)

type Option func(*Ledger)

func WithClock(clock *mockable.Clock) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(l *Ledger) {
		l.tracer = tracer
	}
}

type Ledger struct {
	cfg     Config
	log     log.Logger
	engine  fhe.Engine
	clock   *mockable.Clock
	metrics metrics.Metrics
	tracer  trace.Tracer

	// mu serializes transactions. Readers hold it shared.
	mu      sync.RWMutex
	db      database.Database
	entries *cache.LRU[uint64, *state.Entry]

	listenersLock sync.RWMutex
	listeners     []Listener
}

func New(logger log.Logger, db database.Database, engine fhe.Engine, cfg Config, opts ...Option) (*Ledger, error) {
	if cfg.MaxSubjectLength == 0 {
		cfg.MaxSubjectLength = DefaultMaxSubjectLength
	}
	if cfg.EntryCacheSize == 0 {
		cfg.EntryCacheSize = DefaultEntryCacheSize
	}
	switch {
	case cfg.MaxSubjectLength < 0:
		return nil, fmt.Errorf("%w: max subject length %d", ErrInvalidConfig, cfg.MaxSubjectLength)
	case len(cfg.AttestationKeys) > 0 && (cfg.AttestationThreshold < 1 || cfg.AttestationThreshold > len(cfg.AttestationKeys)):
		return nil, fmt.Errorf("%w: attestation threshold %d of %d keys", ErrInvalidConfig, cfg.AttestationThreshold, len(cfg.AttestationKeys))
	}

	l := &Ledger{
		cfg:     cfg,
		log:     logger,
		engine:  engine,
		clock:   &mockable.Clock{},
		metrics: metrics.NewNoop(),
		tracer:  otel.Tracer("github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/ledger"),
		db:      db,
		entries: &cache.LRU[uint64, *state.Entry]{Size: cfg.EntryCacheSize},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Principal is the identity the ledger holds decryption grants as.
func (l *Ledger) Principal() ids.ShortID {
	return l.cfg.Principal
}

// Subscribe registers fn for the events of all later transactions.
func (l *Ledger) Subscribe(fn Listener) {
	l.listenersLock.Lock()
	defer l.listenersLock.Unlock()
	l.listeners = append(l.listeners, fn)
}

// txn is the write set of one transaction.
type txn struct {
	*state.State

	now     time.Time
	events  []*state.Event
	touched []uint64

	activeEntries    uint32
	activeEntriesSet bool
	finalized        *state.Scope
}

func (tx *txn) emit(e *state.Event) error {
	e.Timestamp = tx.now
	if err := tx.AppendEvent(e); err != nil {
		return fmt.Errorf("failed to append %s event: %w", e.Kind, err)
	}
	tx.events = append(tx.events, e)
	return nil
}

// execute runs fn as one transaction named op.
func (l *Ledger) execute(
	ctx context.Context,
	op string,
	fn func(context.Context, *txn) error,
	attrs ...attribute.KeyValue,
) error {
	ctx, span := l.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
	defer span.End()

	tx, err := l.commit(ctx, fn)
	l.metrics.MarkOperation(op, outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.log.Debug("ledger transaction rejected",
			log.String("op", op),
			log.Err(err),
		)
		return err
	}

	if tx.activeEntriesSet {
		l.metrics.SetActiveEntries(tx.activeEntries)
	}
	if tx.finalized != nil {
		l.metrics.MarkFinalized(tx.finalized.Global)
	}
	l.log.Debug("ledger transaction committed",
		log.String("op", op),
		log.Int("events", len(tx.events)),
	)
	l.notify(tx.events)
	return nil
}

func (l *Ledger) commit(ctx context.Context, fn func(context.Context, *txn) error) (*txn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	overlay := versiondb.New(l.db)
	tx := &txn{
		State: state.New(overlay),
		now:   l.clock.Time(),
	}
	if err := fn(ctx, tx); err != nil {
		overlay.Abort()
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		overlay.Abort()
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	for _, id := range tx.touched {
		l.entries.Evict(id)
	}
	return tx, nil
}

func (l *Ledger) notify(events []*state.Event) {
	if len(events) == 0 {
		return
	}
	l.listenersLock.RLock()
	listeners := l.listeners
	l.listenersLock.RUnlock()

	for _, fn := range listeners {
		fn(events)
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return isAny(err, validationErrors)
}

// IsConflict reports whether err was caused by the current ledger state.
func IsConflict(err error) bool {
	return isAny(err, conflictErrors)
}

// IsCorrelation reports whether err rejected an oracle callback.
func IsCorrelation(err error) bool {
	return isAny(err, correlationErrors)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidation(err):
		return "validation"
	case IsConflict(err):
		return "conflict"
	case IsCorrelation(err):
		return "correlation"
	default:
		return "error"
	}
}
