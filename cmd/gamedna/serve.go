package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/txn2/gamedna/pkg/logging"
	"github.com/txn2/gamedna/pkg/platform"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the config HTTP API",
		Long: `Run the config HTTP API until SIGINT or SIGTERM. Readiness reports
draining before the server stops accepting requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "Path to configuration file")
	return cmd
}

func serve(ctx context.Context, configPath string) (err error) {
	cfg, err := platform.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.Logging.Options())
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer func() {
		if cerr := logging.Close(logCloser); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := platform.New(ctx, platform.WithConfig(cfg))
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	slog.Info("gamedna started", "version", version)

	var result *multierror.Error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case serveErr := <-p.Errors():
		result = multierror.Append(result, serveErr)
	}

	// The signal context is already canceled; shutdown gets its own budget.
	if stopErr := p.Stop(context.WithoutCancel(ctx)); stopErr != nil {
		result = multierror.Append(result, stopErr)
	}
	slog.Info("gamedna stopped")
	return result.ErrorOrNil()
}
