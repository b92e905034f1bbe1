// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server hosts VM handlers under /ext behind CORS, a Host header
// allowlist, request metrics and tracing.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

const (
	baseURL              = "/ext"
	maxConcurrentStreams = 64

	// LedgerIDHeader carries the ID of the ledger behind the server on every
	// response.
	LedgerIDHeader = "Ledger-Id"
)

var (
	_ Server = (*server)(nil)

	errAlreadyReserved = errors.New("route is already reserved")
)

// Server maintains the HTTP router
type Server interface {
	// AddRoute registers handler at /ext/<base><endpoint>.
	AddRoute(handler http.Handler, base, endpoint string) error
	// Dispatch serves the listener until Shutdown is called.
	Dispatch() error
	// Shutdown this server
	Shutdown() error
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
}

type server struct {
	log log.Logger

	shutdownTimeout time.Duration

	tracer  trace.Tracer
	metrics *serverMetrics

	lock   sync.Mutex
	routes map[string]struct{}
	mux    *http.ServeMux

	srv      *http.Server
	listener net.Listener
}

// New returns an instance of a Server.
func New(
	logger log.Logger,
	listener net.Listener,
	allowedOrigins []string,
	allowedHosts []string,
	shutdownTimeout time.Duration,
	ledgerID ids.ShortID,
	registry metric.Registry,
	httpConfig HTTPConfig,
) (Server, error) {
	m, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	handler := wrapHandler(mux, ledgerID, allowedOrigins, allowedHosts)

	httpServer := &http.Server{
		Handler: h2c.NewHandler(
			handler,
			&http2.Server{
				MaxConcurrentStreams: maxConcurrentStreams,
			}),
		ReadTimeout:       httpConfig.ReadTimeout,
		ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
		WriteTimeout:      httpConfig.WriteTimeout,
		IdleTimeout:       httpConfig.IdleTimeout,
	}

	logger.Info("API created",
		log.String("allowedOrigins", strings.Join(allowedOrigins, ",")),
		log.String("allowedHosts", strings.Join(allowedHosts, ",")),
	)

	return &server{
		log:             logger,
		shutdownTimeout: shutdownTimeout,
		tracer:          otel.Tracer("github.com/SolomonMacAdam/crypt-seal-vault/api/server"),
		metrics:         m,
		routes:          make(map[string]struct{}),
		mux:             mux,
		srv:             httpServer,
		listener:        listener,
	}, nil
}

func (s *server) Dispatch() error {
	return s.srv.Serve(s.listener)
}

func (s *server) AddRoute(handler http.Handler, base, endpoint string) error {
	url := fmt.Sprintf("%s/%s%s", baseURL, base, endpoint)

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.routes[url]; ok {
		return fmt.Errorf("%w: %s", errAlreadyReserved, url)
	}
	s.log.Info("adding route",
		log.String("url", url),
	)

	handler = traceHandler(handler, url, s.tracer)
	s.mux.Handle(url, s.metrics.wrapHandler(base, handler))
	s.routes[url] = struct{}{}
	return nil
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}

func traceHandler(handler http.Handler, name string, tracer trace.Tracer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), name, trace.WithAttributes(
			attribute.String("method", r.Method),
			attribute.Int64("contentLength", r.ContentLength),
		))
		defer span.End()

		handler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func wrapHandler(
	handler http.Handler,
	ledgerID ids.ShortID,
	allowedOrigins []string,
	allowedHosts []string,
) http.Handler {
	h := filterInvalidHosts(handler, allowedHosts)
	h = cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(h)
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(LedgerIDHeader, ledgerID.String())
			h.ServeHTTP(w, r)
		},
	)
}

// filterInvalidHosts rejects requests whose Host is a name outside of
// allowedHosts. IP hosts and empty hosts always pass.
func filterInvalidHosts(handler http.Handler, allowedHosts []string) http.Handler {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, host := range allowedHosts {
		if host == "*" {
			return handler
		}
		allowed[strings.ToLower(host)] = struct{}{}
	}
	if len(allowed) == 0 {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host == "" {
			handler.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			// no port in the Host header
			host = r.Host
		}
		if net.ParseIP(host) != nil {
			handler.ServeHTTP(w, r)
			return
		}
		if _, ok := allowed[strings.ToLower(host)]; !ok {
			http.Error(w, "invalid host specified", http.StatusForbidden)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
