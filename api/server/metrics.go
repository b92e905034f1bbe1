// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"
	"time"

	"github.com/luxfi/metric"
)

type serverMetrics struct {
	requests metric.CounterVec
	duration metric.GaugeVec
	inflight metric.Gauge
}

func newMetrics(registry metric.Registry) (*serverMetrics, error) {
	metricsInstance := metric.NewWithRegistry("http", registry)
	return &serverMetrics{
		requests: metricsInstance.NewCounterVec(
			"requests",
			"Number of API requests by method and base",
			[]string{"method", "base"},
		),
		duration: metricsInstance.NewGaugeVec(
			"request_duration_ns",
			"Nanoseconds spent serving API requests by method and base",
			[]string{"method", "base"},
		),
		inflight: metricsInstance.NewGauge(
			"requests_inflight",
			"Number of API requests being served",
		),
	}, nil
}

func (m *serverMetrics) wrapHandler(base string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inflight.Inc()
		defer m.inflight.Dec()

		start := time.Now()
		handler.ServeHTTP(w, r)

		labels := metric.Labels{"method": r.Method, "base": base}
		m.requests.With(labels).Inc()
		m.duration.With(labels).Add(float64(time.Since(start)))
	})
}
