package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightci/standalone-runner/discovery"
	"github.com/lightci/standalone-runner/runner"
)

const collectThree = `cat <<'EOF'
tests/basic.py::test_one
tests/basic.py::test_two[param0]
tests/extra.py::test_three

3 tests collected in 0.02s
EOF`

func testConfig(t *testing.T, file *FileConfig) *Config {
	t.Helper()
	return &Config{
		TestDir:   t.TempDir(),
		BatchSize: 2,
		LogDir:    t.TempDir(),
		RunOnce:   true,
		File:      file,
		Log:       zerolog.Nop(),
	}
}

func TestHarnessRunOnce(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		CollectCmd: []string{"/bin/sh", "-c", collectThree},
		RunCmd:     []string{"/bin/sh", "-c", `echo "ran $0"`},
		Blocklist:  []string{"basic.py::test_two"},
		Probe: ProbeFileConfig{
			Launcher: []string{"/bin/sh", "-c", `echo "probe SUCCEEDED"`},
			Marker:   "SUCCEEDED",
		},
	})

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))

	records := h.Result().Records()
	require.Len(t, records, 3)

	// Records come back in discovery order regardless of execution order.
	assert.Equal(t, discovery.TestID("tests/basic.py::test_one"), records[0].ID)
	assert.Equal(t, runner.StatusRan, records[0].Status)
	require.NotNil(t, records[0].ExitCode)
	assert.Equal(t, 0, *records[0].ExitCode)

	assert.Equal(t, discovery.TestID("tests/basic.py::test_two[param0]"), records[1].ID)
	assert.Equal(t, runner.StatusSkipped, records[1].Status)
	assert.Nil(t, records[1].ExitCode)

	assert.Equal(t, discovery.TestID("tests/extra.py::test_three"), records[2].ID)
	assert.Equal(t, runner.StatusRan, records[2].Status)

	assert.Equal(t, runner.Stats{Total: 3, Ran: 2, Skipped: 1, Failed: 0}, h.Result().Stats())
}

func TestHarnessFailingTestsDontFailRun(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		CollectCmd: []string{"/bin/sh", "-c", collectThree},
		RunCmd:     []string{"/bin/sh", "-c", `case "$0" in *three*) exit 4;; esac`},
		Probe: ProbeFileConfig{
			Launcher: []string{"/bin/sh", "-c", `echo SUCCEEDED`},
			Marker:   "SUCCEEDED",
		},
	})

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))

	stats := h.Result().Stats()
	assert.Equal(t, 3, stats.Ran)
	assert.Equal(t, 1, stats.Failed)
}

func TestHarnessEmptyDiscovery(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		// pytest exits 5 when no tests match the marker; that is an empty
		// run, not a failure.
		CollectCmd: []string{"/bin/sh", "-c", "exit 5"},
		RunCmd:     []string{"/bin/sh", "-c", "exit 0"},
		Probe: ProbeFileConfig{
			Launcher: []string{"/bin/sh", "-c", `echo SUCCEEDED`},
			Marker:   "SUCCEEDED",
		},
	})

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))

	assert.Empty(t, h.Result().Records())
	assert.Equal(t, runner.Stats{}, h.Result().Stats())
}

func TestHarnessCustomNoTestsExitCode(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		// A framework whose "nothing matched" exit code is not pytest's 5.
		CollectCmd:      []string{"/bin/sh", "-c", "exit 8"},
		NoTestsExitCode: 8,
		RunCmd:          []string{"/bin/sh", "-c", "exit 0"},
	})
	cfg.SkipProbe = true

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	assert.Empty(t, h.Result().Records())
}

func TestHarnessDiscoveryFailureIsRuntimeError(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		CollectCmd: []string{"/bin/sh", "-c", `echo "collection error" 1>&2; exit 2`},
		RunCmd:     []string{"/bin/sh", "-c", "exit 0"},
		Probe: ProbeFileConfig{
			Launcher: []string{"/bin/sh", "-c", `echo SUCCEEDED`},
			Marker:   "SUCCEEDED",
		},
	})

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)

	err = h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.False(t, IsProbeFailureError(err))
}

func TestHarnessProbeFailure(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		CollectCmd: []string{"/bin/sh", "-c", collectThree},
		RunCmd:     []string{"/bin/sh", "-c", "exit 0"},
		Probe: ProbeFileConfig{
			Launcher: []string{"/bin/sh", "-c", `echo "ranks hung on barrier"`},
			Marker:   "SUCCEEDED",
		},
	})

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)

	err = h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsProbeFailureError(err))
	assert.False(t, IsRuntimeError(err))

	// The batched tests themselves all passed; only the probe is at fault.
	assert.Equal(t, 0, h.Result().Stats().Failed)
}

func TestHarnessSkipProbe(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		CollectCmd: []string{"/bin/sh", "-c", collectThree},
		RunCmd:     []string{"/bin/sh", "-c", "exit 0"},
	})
	cfg.SkipProbe = true

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	assert.Len(t, h.Result().Records(), 3)
}

func TestHarnessStripPrefix(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		CollectCmd:  []string{"/bin/sh", "-c", `echo "/repo/tests/a.py::test_x"`},
		RunCmd:      []string{"/bin/sh", "-c", "exit 0"},
		StripPrefix: "/repo",
		Probe: ProbeFileConfig{
			Launcher: []string{"/bin/sh", "-c", `echo SUCCEEDED`},
			Marker:   "SUCCEEDED",
		},
	})

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))

	records := h.Result().Records()
	require.Len(t, records, 1)
	assert.Equal(t, discovery.TestID("tests/a.py::test_x"), records[0].ID)
}

func TestHarnessContinuousStopAndWait(t *testing.T) {
	cfg := testConfig(t, &FileConfig{
		CollectCmd: []string{"/bin/sh", "-c", "exit 5"},
		RunCmd:     []string{"/bin/sh", "-c", "exit 0"},
	})
	cfg.SkipProbe = true
	cfg.RunOnce = false
	cfg.RunInterval = time.Hour

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)

	require.NoError(t, h.Start(context.Background()))
	assert.False(t, h.Stopped())

	require.NoError(t, h.Stop(context.Background()))
	assert.True(t, h.Stopped())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.WaitForShutdown(ctx))

	// Stop is idempotent.
	require.NoError(t, h.Stop(context.Background()))
}

func TestHarnessGoTestDiscoverer(t *testing.T) {
	moduleDir := t.TempDir()
	pkgDir := filepath.Join(moduleDir, "feature")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "feature_test.go"), []byte(`package feature

import "testing"

func TestAlpha(t *testing.T) {}

func TestBeta(t *testing.T) {}
`), 0o644))

	cfg := testConfig(t, &FileConfig{
		Discoverer: DiscovererGoTest,
		GoPackage:  "./feature",
		RunCmd:     []string{"/bin/sh", "-c", `echo "ran $0"`},
	})
	cfg.TestDir = moduleDir
	cfg.SkipProbe = true

	h, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))

	records := h.Result().Records()
	require.Len(t, records, 2)
	assert.Equal(t, discovery.TestID("./feature::TestAlpha"), records[0].ID)
	assert.Equal(t, discovery.TestID("./feature::TestBeta"), records[1].ID)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "test")
	require.ErrorContains(t, err, "config is required")
}
