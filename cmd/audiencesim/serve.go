package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/audiencesim/internal/runtime"
)

func newServeCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			opts := []runtime.Option{
				runtime.WithConfigFile(cfgFile),
				runtime.WithLogger(logger),
			}
			if offline {
				opts = append(opts, runtime.WithOffline())
			}

			svc, err := runtime.New(opts...)
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}

			waitErr := svc.Wait(ctx)
			if waitErr != nil {
				logger.Error("server stopped", slog.String("error", waitErr.Error()))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := svc.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return waitErr
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "run without a model provider; every stage uses its fallback")
	return cmd
}
