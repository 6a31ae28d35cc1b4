package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "STANDALONE_RUNNER"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	TestDir = &cli.StringFlag{
		Name:     "testdir",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("TESTDIR"),
		Usage:    "Path to the directory from which to discover standalone tests",
	}
	HarnessConfig = &cli.StringFlag{
		Name:     "config",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("CONFIG"),
		Usage:    "Path to harness config file (eg. 'standalone.yaml')",
	}
	BatchSize = &cli.IntFlag{
		Name:    "batch-size",
		Value:   6,
		EnvVars: prefixEnvVars("BATCH_SIZE"),
		Usage:   "Number of tests launched concurrently per batch",
	}
	Marker = &cli.StringFlag{
		Name:    "marker",
		Value:   "standalone",
		EnvVars: prefixEnvVars("MARKER"),
		Usage:   "Marker/tag identifying standalone tests during discovery",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory for per-batch shared log files (defaults to the system temp dir)",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	TestTimeout = &cli.DurationFlag{
		Name:    "test-timeout",
		Value:   0,
		EnvVars: prefixEnvVars("TEST_TIMEOUT"),
		Usage:   "Per-test timeout forwarded to the test framework (not enforced by the harness)",
	}
	SkipProbe = &cli.BoolFlag{
		Name:    "skip-probe",
		Value:   false,
		EnvVars: prefixEnvVars("SKIP_PROBE"),
		Usage:   "Skip the deadlock probe after the batched run",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level (trace, debug, info, warn, error)",
	}
)

var requiredFlags = []cli.Flag{
	TestDir,
	HarnessConfig,
}

var optionalFlags = []cli.Flag{
	BatchSize,
	Marker,
	LogDir,
	RunInterval,
	TestTimeout,
	SkipProbe,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
