// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/metric"
)

// APIInterceptor measures every JSON-RPC call served by the VM.
type APIInterceptor interface {
	InterceptRequest(i *rpc.RequestInfo) *http.Request
	AfterRequest(i *rpc.RequestInfo)
}

type contextKey int

const requestStartKey contextKey = iota

type apiInterceptor struct {
	calls    metric.CounterVec
	duration metric.GaugeVec
	errors   metric.CounterVec
	inflight metric.Gauge
}

func NewAPIInterceptor(registry metric.Registry) (APIInterceptor, error) {
	metricsInstance := metric.NewWithRegistry(namespace+"_api", registry)
	return &apiInterceptor{
		calls: metricsInstance.NewCounterVec(
			"calls",
			"Number of calls by method",
			[]string{"method"},
		),
		duration: metricsInstance.NewGaugeVec(
			"duration_ns",
			"Nanoseconds spent serving calls by method",
			[]string{"method"},
		),
		errors: metricsInstance.NewCounterVec(
			"errors",
			"Number of calls that returned an error by method",
			[]string{"method"},
		),
		inflight: metricsInstance.NewGauge(
			"inflight",
			"Number of calls being served",
		),
	}, nil
}

func (a *apiInterceptor) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	a.inflight.Inc()
	ctx := context.WithValue(i.Request.Context(), requestStartKey, time.Now())
	return i.Request.WithContext(ctx)
}

func (a *apiInterceptor) AfterRequest(i *rpc.RequestInfo) {
	start, ok := i.Request.Context().Value(requestStartKey).(time.Time)
	if !ok {
		return
	}
	a.inflight.Dec()

	labels := metric.Labels{"method": i.Method}
	a.calls.With(labels).Inc()
	a.duration.With(labels).Add(float64(time.Since(start)))
	if i.Error != nil {
		a.errors.With(labels).Inc()
	}
}
