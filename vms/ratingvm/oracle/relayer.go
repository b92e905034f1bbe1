// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/log"

	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm/fhe"
)

var (
	_ fhe.DecryptionRequester = (*Relayer)(nil)

	ErrQueueFull      = errors.New("decryption queue full")
	ErrRelayerStopped = errors.New("relayer stopped")
)

// CallbackFunc delivers a decryption result to the ledger.
type CallbackFunc func(ctx context.Context, requestID uint64, cleartext []byte, attestations [][]byte) error

type job struct {
	id  uint64
	cts []fhe.Ciphertext
}

// Relayer queues decryption requests and answers each one from a worker
// goroutine by invoking the registered callback. Requests are never retried.
type Relayer struct {
	log       log.Logger
	committee *Committee
	queue     chan job

	mu       sync.RWMutex
	callback CallbackFunc

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRelayer(logger log.Logger, committee *Committee, queueSize int) *Relayer {
	return &Relayer{
		log:       logger,
		committee: committee,
		queue:     make(chan job, queueSize),
		stop:      make(chan struct{}),
	}
}

// SetCallback registers the target results are delivered to.
func (r *Relayer) SetCallback(fn CallbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = fn
}

// RequestDecryption enqueues cts and returns the request identifier. It
// never blocks; a full queue is reported as ErrQueueFull.
func (r *Relayer) RequestDecryption(_ context.Context, cts []fhe.Ciphertext) (uint64, error) {
	if len(cts) == 0 {
		return 0, fhe.ErrNoCiphertexts
	}
	select {
	case <-r.stop:
		return 0, ErrRelayerStopped
	default:
	}

	id, err := newRequestID()
	if err != nil {
		return 0, err
	}
	owned := make([]fhe.Ciphertext, len(cts))
	for i, ct := range cts {
		owned[i] = ct.Clone()
	}

	select {
	case r.queue <- job{id: id, cts: owned}:
	default:
		r.log.Warn("decryption queue full, dropping request",
			log.Uint64("requestID", id),
		)
		return 0, ErrQueueFull
	}
	r.log.Debug("queued decryption request",
		log.Uint64("requestID", id),
		log.Int("ciphertexts", len(cts)),
	)
	return id, nil
}

// Start launches workers goroutines that drain the queue until ctx is done
// or Stop is called.
func (r *Relayer) Start(ctx context.Context, workers int) {
	r.log.Info("starting decryption relayer",
		log.Int("workers", workers),
		log.Int("committee", r.committee.Size()),
		log.Int("threshold", r.committee.Threshold()),
	)
	for range workers {
		r.wg.Add(1)
		go r.work(ctx)
	}
}

// Stop terminates the workers and waits for them. Queued requests that were
// not picked up are abandoned.
func (r *Relayer) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
}

func (r *Relayer) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case j := <-r.queue:
			r.handle(ctx, j)
		}
	}
}

func (r *Relayer) handle(ctx context.Context, j job) {
	cleartext, attestations, err := r.committee.Fulfil(j.id, j.cts)
	if err != nil {
		r.log.Error("threshold decryption failed",
			log.Uint64("requestID", j.id),
			log.Err(err),
		)
		return
	}

	r.mu.RLock()
	callback := r.callback
	r.mu.RUnlock()
	if callback == nil {
		r.log.Warn("no callback registered, dropping result",
			log.Uint64("requestID", j.id),
		)
		return
	}

	if err := callback(ctx, j.id, cleartext, attestations); err != nil {
		r.log.Warn("callback rejected decryption result",
			log.Uint64("requestID", j.id),
			log.Err(err),
		)
		return
	}
	r.log.Debug("delivered decryption result",
		log.Uint64("requestID", j.id),
	)
}

// newRequestID returns a random non-zero 63-bit identifier.
func newRequestID() (uint64, error) {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("failed to draw request id: %w", err)
		}
		if id := binary.BigEndian.Uint64(b[:]) >> 1; id != 0 {
			return id, nil
		}
	}
}
