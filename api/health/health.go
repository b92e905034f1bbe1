// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health reports the result of registered checks over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/SolomonMacAdam/crypt-seal-vault/utils/timer/mockable"
)

// AllTag labels the gauge summing every failing check.
const AllTag = "all"

var (
	_ http.Handler = (*Health)(nil)

	errDuplicateCheck = errors.New("duplicated check")
)

// Checker is anything that can report its health, such as a VM.
type Checker interface {
	HealthCheck(context.Context) (interface{}, error)
}

type CheckerFunc func(context.Context) (interface{}, error)

func (f CheckerFunc) HealthCheck(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// Result of a single check.
type Result struct {
	Details            interface{}   `json:"message,omitempty"`
	Error              *string       `json:"error,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
	Duration           time.Duration `json:"duration"`
	ContiguousFailures int64         `json:"contiguousFailures,omitempty"`
}

// APIReply is the body served by the handler.
type APIReply struct {
	Checks  map[string]Result `json:"checks"`
	Healthy bool              `json:"healthy"`
}

type Health struct {
	log     log.Logger
	clock   *mockable.Clock
	metrics *healthMetrics

	lock     sync.Mutex
	checks   map[string]Checker
	failures map[string]int64
}

func New(logger log.Logger, registry metric.Registry) *Health {
	return &Health{
		log:      logger,
		clock:    &mockable.Clock{},
		metrics:  newMetrics("health", registry),
		checks:   make(map[string]Checker),
		failures: make(map[string]int64),
	}
}

// RegisterCheck adds a named check.
func (h *Health) RegisterCheck(name string, checker Checker) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.checks[name]; ok {
		return fmt.Errorf("%w: %q", errDuplicateCheck, name)
	}
	h.checks[name] = checker
	h.metrics.failingChecks.WithLabelValues(name).Set(0)
	return nil
}

// Check runs every registered check in name order.
func (h *Health) Check(ctx context.Context) APIReply {
	h.lock.Lock()
	defer h.lock.Unlock()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	reply := APIReply{
		Checks:  make(map[string]Result, len(names)),
		Healthy: true,
	}
	failing := 0
	for _, name := range names {
		start := h.clock.Time()
		details, err := h.checks[name].HealthCheck(ctx)
		result := Result{
			Details:   details,
			Timestamp: start,
			Duration:  h.clock.Time().Sub(start),
		}
		if err != nil {
			msg := err.Error()
			result.Error = &msg
			h.failures[name]++
			result.ContiguousFailures = h.failures[name]
			reply.Healthy = false
			failing++
			h.metrics.failingChecks.WithLabelValues(name).Set(1)
			h.log.Warn("health check failing",
				log.String("check", name),
				log.Int("contiguousFailures", int(result.ContiguousFailures)),
				log.Err(err),
			)
		} else {
			h.failures[name] = 0
			h.metrics.failingChecks.WithLabelValues(name).Set(0)
		}
		reply.Checks[name] = result
	}
	h.metrics.failingChecks.WithLabelValues(AllTag).Set(float64(failing))
	return reply
}

// ServeHTTP answers GET and HEAD with the check results, using 503 when any
// check fails.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	reply := h.Check(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if !reply.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		h.log.Debug("failed to write health reply", log.Err(err))
	}
}
