package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	loomrun "github.com/loomrun/loomrun"
	"github.com/loomrun/loomrun/flags"
	"github.com/loomrun/loomrun/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "loomrun"
	app.Usage = "Loom test workflow runner"
	app.Description = "loomrun discovers failing loom tests and re-runs them with diagnostics, resuming from checkpoints"
	app.ArgsUsage = "[filter] [testargs...]"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if loomrun.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if loomrun.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start healthz and metrics servers
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	logger, err := setupLogging(ctx)
	if err != nil {
		return loomrun.NewRuntimeError(err)
	}

	cfg, err := loomrun.NewConfig(ctx, logger)
	if err != nil {
		return loomrun.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	runCtx, cancel := context.WithCancelCause(ctx.Context)
	defer cancel(nil)

	app, err := loomrun.New(runCtx, cfg, Version, cancel)
	if err != nil {
		return loomrun.NewRuntimeError(fmt.Errorf("failed to create loomrun: %w", err))
	}

	if err := app.Start(runCtx); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	<-runCtx.Done()
	return app.Stop(context.Background())
}

// setupLogging installs a terminal handler at the requested level as the
// process-wide default logger and returns it.
func setupLogging(ctx *cli.Context) (log.Logger, error) {
	level, err := log.LvlFromString(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	useColor := false
	if info, statErr := os.Stderr.Stat(); statErr == nil {
		useColor = info.Mode()&os.ModeCharDevice != 0
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, useColor))
	log.SetDefault(logger)
	return logger, nil
}
