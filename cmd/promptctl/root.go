package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/promptmart/internal/app"
	"github.com/timmy/promptmart/internal/config"
	"github.com/timmy/promptmart/internal/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "promptctl",
		Short:        "Manage and query the prompt catalog",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	return cmd
}

// bootstrap loads configuration and wires the application. The returned
// context is cancelled on SIGINT/SIGTERM.
func bootstrap(cmd *cobra.Command, opts *rootOptions, appOpts app.Options) (context.Context, *app.App, func(), error) {
	envCfg := logger.LoadFromEnv()
	envCfg.Level = opts.logLevel
	envCfg.ServiceName = "promptctl"
	envCfg.Output = cmd.ErrOrStderr()
	log := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(log)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	a, err := app.New(ctx, cfg, log, appOpts)
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}

	cleanup := func() {
		a.Close(context.WithoutCancel(ctx))
		stop()
		_ = logger.Sync()
	}
	return ctx, a, cleanup, nil
}
