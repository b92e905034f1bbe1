// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/utils/ulimit"

	"github.com/SolomonMacAdam/crypt-seal-vault/api/health"
	"github.com/SolomonMacAdam/crypt-seal-vault/api/server"
	"github.com/SolomonMacAdam/crypt-seal-vault/utils/profiler"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms"
	"github.com/SolomonMacAdam/crypt-seal-vault/vms/ratingvm"
)

const (
	readHeaderTimeout = 10 * time.Second
	healthBase        = "health"
	profilerCheck     = "profiler"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Serves a rating VM over JSON-RPC",
		RunE:  runFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	cfg, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	logger := log.Root()
	if err := ulimit.Set(ulimit.DefaultFDLimit, logger); err != nil {
		return fmt.Errorf("failed to set fd limit: %w", err)
	}

	created, err := ratingvm.NewFactory(cfg.VM).New(logger)
	if err != nil {
		return err
	}
	vm := created.(*ratingvm.VM)

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := vm.Initialize(ctx, nil, nil); err != nil {
		return err
	}
	defer func() {
		if err := vm.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shut down VM", log.Err(err))
		}
	}()

	registry := metric.NewRegistry()
	var prof *profiler.Profiler
	if cfg.Profiler.Enabled {
		prof = profiler.New(logger, registry, cfg.Profiler)
	}
	srv, err := newServer(ctx, logger, registry, vm, prof, cfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving rating VM",
			log.String("address", vm.ListenAddress),
		)
		if err := srv.Dispatch(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown()
	})
	if prof != nil {
		g.Go(func() error {
			return prof.Dispatch(gctx)
		})
	}
	return g.Wait()
}

// newServer mounts the VM handlers under /ext/ratingvm and the health
// report under /ext/health. prof, when set, is reported as its own check.
func newServer(
	ctx context.Context,
	logger log.Logger,
	registry metric.Registry,
	vm *ratingvm.VM,
	prof *profiler.Profiler,
	cfg *Config,
) (server.Server, error) {
	listener, err := net.Listen("tcp", vm.ListenAddress)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(
		logger,
		listener,
		vm.AllowedOrigins,
		vm.AllowedHosts,
		cfg.ShutdownTimeout,
		vm.PublicParams().Ledger,
		registry,
		server.HTTPConfig{ReadHeaderTimeout: readHeaderTimeout},
	)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	handlers, err := vms.DelegateHandlers(ctx, vm)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	for endpoint, handler := range handlers {
		if err := srv.AddRoute(handler, ratingvm.VMID, endpoint); err != nil {
			_ = listener.Close()
			return nil, err
		}
	}

	checks := health.New(logger, registry)
	if err := checks.RegisterCheck(ratingvm.VMID, vm); err != nil {
		_ = listener.Close()
		return nil, err
	}
	if prof != nil {
		if err := checks.RegisterCheck(profilerCheck, prof); err != nil {
			_ = listener.Close()
			return nil, err
		}
	}
	if err := srv.AddRoute(checks, healthBase, ""); err != nil {
		_ = listener.Close()
		return nil, err
	}
	return srv, nil
}
