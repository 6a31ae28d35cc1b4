package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/lightci/standalone-runner/flags"
	"github.com/lightci/standalone-runner/probe"
)

const validYAML = `
collect_cmd: ["python", "-m", "pytest", "--collect-only", "-q"]
run_cmd: ["python", "-m", "pytest", "-v"]
blocklist:
  - "tests/flaky.py::test_unstable"
pass_through:
  - "--color=no"
strip_prefix: "tests"
probe:
  launcher: ["torchrun", "--nnodes=1", "--nproc-per-node=2", "--max-restarts=0", "probe.py"]
  marker: "SUCCEEDED"
`

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "standalone.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// parseConfig drives NewConfig through a real cli context so flag defaults and
// env-var handling behave exactly as in production.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error

	app := cli.NewApp()
	app.Name = "standalone-runner"
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		cfg, cfgErr = NewConfig(ctx, zerolog.Nop(),
			ctx.String(flags.TestDir.Name), ctx.String(flags.HarnessConfig.Name))
		return nil
	}

	err := app.Run(append([]string{"standalone-runner"}, args...))
	require.NoError(t, err)
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	testDir := t.TempDir()
	cfgFile := writeYAML(t, validYAML)

	cfg, err := parseConfig(t, "--testdir", testDir, "--config", cfgFile)
	require.NoError(t, err)

	assert.Equal(t, testDir, cfg.TestDir)
	assert.Equal(t, cfgFile, cfg.ConfigFile)
	assert.Equal(t, 6, cfg.BatchSize)
	assert.Equal(t, "standalone", cfg.Marker)
	assert.True(t, cfg.RunOnce, "zero interval means run-once")
	assert.False(t, cfg.SkipProbe)
	assert.Equal(t, []string{"tests/flaky.py::test_unstable"}, cfg.File.Blocklist)
	assert.Equal(t, []string{"--color=no"}, cfg.File.PassThrough)
	assert.Equal(t, "tests", cfg.File.StripPrefix)
	assert.Equal(t, "SUCCEEDED", cfg.File.Probe.Marker)
	assert.Equal(t, "torchrun", cfg.File.Probe.Launcher[0])
}

func TestNewConfigFileDefaults(t *testing.T) {
	cfgFile := writeYAML(t, `
probe:
  launcher: ["/bin/sh", "-c", "echo SUCCEEDED"]
`)

	cfg, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile)
	require.NoError(t, err)

	assert.Equal(t, defaultCollectCmd, cfg.File.CollectCmd)
	assert.Equal(t, defaultRunCmd, cfg.File.RunCmd)
	assert.Equal(t, probe.DefaultMarker, cfg.File.Probe.Marker)
}

func TestNewConfigRunInterval(t *testing.T) {
	cfgFile := writeYAML(t, validYAML)

	cfg, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile,
		"--run-interval", "30m")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.RunInterval)
	assert.False(t, cfg.RunOnce)
}

func TestNewConfigRejectsZeroBatchSize(t *testing.T) {
	cfgFile := writeYAML(t, validYAML)

	_, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile,
		"--batch-size", "0")
	require.ErrorContains(t, err, "batch size must be positive")
}

func TestNewConfigRequiresProbeLauncher(t *testing.T) {
	cfgFile := writeYAML(t, `
run_cmd: ["python", "-m", "pytest", "-v"]
`)

	_, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile)
	require.ErrorContains(t, err, "probe launcher is required")
}

func TestNewConfigSkipProbeWithoutLauncher(t *testing.T) {
	cfgFile := writeYAML(t, `
run_cmd: ["python", "-m", "pytest", "-v"]
`)

	cfg, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile,
		"--skip-probe")
	require.NoError(t, err)
	assert.True(t, cfg.SkipProbe)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := parseConfig(t, "--testdir", t.TempDir(),
		"--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "failed to read harness config")
}

func TestNewConfigNoTestsExitCode(t *testing.T) {
	cfgFile := writeYAML(t, `
collect_cmd: ["ctest", "--show-only"]
no_tests_exit_code: 8
probe:
  launcher: ["/bin/sh", "-c", "echo SUCCEEDED"]
`)

	cfg, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.File.NoTestsExitCode)
}

func TestNewConfigGoTestDiscoverer(t *testing.T) {
	cfgFile := writeYAML(t, `
discoverer: gotest
go_package: "./internal/feature"
run_cmd: ["go", "test", "-run"]
probe:
  launcher: ["/bin/sh", "-c", "echo SUCCEEDED"]
`)

	cfg, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile)
	require.NoError(t, err)
	assert.Equal(t, DiscovererGoTest, cfg.File.Discoverer)
	assert.Equal(t, "./internal/feature", cfg.File.GoPackage)
}

func TestNewConfigGoTestDiscovererRequiresPackage(t *testing.T) {
	cfgFile := writeYAML(t, `
discoverer: gotest
`)

	_, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile)
	require.ErrorContains(t, err, "gotest discoverer requires go_package")
}

func TestNewConfigUnknownDiscoverer(t *testing.T) {
	cfgFile := writeYAML(t, `
discoverer: cargo
`)

	_, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile)
	require.ErrorContains(t, err, `unknown discoverer "cargo"`)
}

func TestNewConfigMalformedYAML(t *testing.T) {
	cfgFile := writeYAML(t, "run_cmd: [unbalanced")

	_, err := parseConfig(t, "--testdir", t.TempDir(), "--config", cfgFile)
	require.ErrorContains(t, err, "failed to parse harness config")
}
