// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/metric"
)

const namespace = "ratingvm"

var (
	_ Metrics = (*metrics)(nil)
	_ Metrics = noop{}
)

type Metrics interface {
	APIInterceptor

	// MarkOperation records the outcome of one ledger operation.
	MarkOperation(op, outcome string)
	// MarkFinalized records the publication of a statistic.
	MarkFinalized(global bool)
	// SetActiveEntries reports the number of active entries on the ledger.
	SetActiveEntries(n uint32)
}

type metrics struct {
	APIInterceptor

	operations    metric.CounterVec
	finalized     metric.CounterVec
	activeEntries metric.Gauge
}

func New(registry metric.Registry) (Metrics, error) {
	interceptor, err := NewAPIInterceptor(registry)
	if err != nil {
		return nil, err
	}
	metricsInstance := metric.NewWithRegistry(namespace, registry)
	return &metrics{
		APIInterceptor: interceptor,
		operations: metricsInstance.NewCounterVec(
			"operations",
			"Number of ledger operations by outcome",
			[]string{"op", "outcome"},
		),
		finalized: metricsInstance.NewCounterVec(
			"finalized",
			"Number of statistics published",
			[]string{"scope"},
		),
		activeEntries: metricsInstance.NewGauge(
			"active_entries",
			"Number of active rating entries",
		),
	}, nil
}

func (m *metrics) MarkOperation(op, outcome string) {
	m.operations.With(metric.Labels{
		"op":      op,
		"outcome": outcome,
	}).Inc()
}

func (m *metrics) MarkFinalized(global bool) {
	scope := "subject"
	if global {
		scope = "global"
	}
	m.finalized.With(metric.Labels{
		"scope": scope,
	}).Inc()
}

func (m *metrics) SetActiveEntries(n uint32) {
	m.activeEntries.Set(float64(n))
}

type noop struct{}

// NewNoop returns metrics that record nothing.
func NewNoop() Metrics {
	return noop{}
}

func (noop) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	return i.Request
}

func (noop) AfterRequest(*rpc.RequestInfo) {}

func (noop) MarkOperation(string, string) {}

func (noop) MarkFinalized(bool) {}

func (noop) SetActiveEntries(uint32) {}
