package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the retention job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				e.cfg.ListenAddr = addr
			}
			return runServe(cmd.Context(), e)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}

func runServe(parent context.Context, e *env) error {
	a, err := e.app()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			e.logger.Error("failed to close database", "error", err)
		}
	}()

	server, err := a.Server()
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	pruner, err := a.Pruner()
	if err != nil {
		return fmt.Errorf("failed to build retention job: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := server.HTTPServer(e.cfg.ListenAddr)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.logger.Info("starting server", "addr", e.cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		e.logger.Info("shutting down server")
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return pruner.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error("server error", "error", err)
		return err
	}
	e.logger.Info("shutdown complete")
	return nil
}
