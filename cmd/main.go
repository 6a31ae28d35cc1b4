package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	harness "github.com/lightci/standalone-runner"
	"github.com/lightci/standalone-runner/exitcodes"
	"github.com/lightci/standalone-runner/flags"
	"github.com/lightci/standalone-runner/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "standalone-runner"
	app.Usage = "Bounded-concurrency isolated-process test runner"
	app.Description = "standalone-runner executes standalone tests as isolated child processes in fixed-size batches with a join barrier, then verifies distributed liveness with a deadlock probe"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if harness.IsProbeFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.ProbeFailure))
			} else {
				// Runtime errors and anything unclassified
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup open telemetry")
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("application failed")
		os.Exit(exitcodes.RuntimeErr)
	}
}

func run(ctx *cli.Context) error {
	logger, err := newLogger(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return harness.NewRuntimeError(err)
	}

	cfg, err := harness.NewConfig(
		ctx,
		logger,
		ctx.String(flags.TestDir.Name),
		ctx.String(flags.HarnessConfig.Name),
	)
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	h, err := harness.New(ctx.Context, cfg, Version)
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}

	if cfg.RunOnce {
		return h.Start(ctx.Context)
	}

	// Continuous mode: block until interrupted, then drain.
	if err := h.Start(ctx.Context); err != nil {
		return err
	}
	<-ctx.Context.Done()
	if err := h.Stop(context.Background()); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return h.WaitForShutdown(waitCtx)
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	logger := log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339Nano,
	})
	return logger, nil
}
