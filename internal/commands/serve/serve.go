// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package serve runs the HTTP service.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/opspilot/internal/api"
	"github.com/tombee/opspilot/internal/commands/shared"
	"github.com/tombee/opspilot/internal/config"
	"github.com/tombee/opspilot/internal/log"
	"github.com/tombee/opspilot/internal/tracing"
)

// NewCommand creates the serve command.
func NewCommand() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the opspilot HTTP service",
		Long: `Serve loads the runbook catalog and exposes the interpret, execute and
runbook endpoints over HTTP. With --watch, edits under the runbook directory
are picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				cfg.Runbooks.Watch = watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, cfg, shared.NewLogger(cfg, false))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload runbooks when files change")
	return cmd
}

// Run listens on cfg.Server.Addr and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	return Serve(ctx, cfg, logger, ln)
}

// Serve runs the service on ln until ctx is cancelled, then drains
// in-flight requests for up to the shutdown timeout. ln is closed on return.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	logger = log.OrDefault(logger)
	version, _, _ := shared.GetVersion()

	tcfg := cfg.Tracing
	tcfg.ServiceVersion = version
	tp, err := tracing.NewProvider(ctx, tcfg)
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			logger.Warn("trace flush failed", log.Error(err))
		}
	}()

	app, err := shared.Build(ctx, cfg, logger)
	if err != nil {
		ln.Close()
		return err
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	router := api.NewRouter(api.RouterConfig{Version: version, MetricsPath: metricsPath},
		app.Orchestrator, app.Executor, app.Registry, logger)

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("opspilot listening",
			slog.String("addr", ln.Addr().String()),
			slog.Int("runbooks", app.Registry.Len()),
			slog.Any("services", cfg.ServiceNames()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// A broken watcher leaves the last good catalog in service.
		if err := app.Registry.Watch(gctx); err != nil {
			logger.Error("runbook watcher unavailable", log.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
