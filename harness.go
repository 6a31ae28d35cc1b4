// Package harness wires test discovery, blocklist filtering, batched isolated
// execution, reporting and the deadlock probe into one run.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lightci/standalone-runner/discovery"
	"github.com/lightci/standalone-runner/filter"
	"github.com/lightci/standalone-runner/probe"
	"github.com/lightci/standalone-runner/runner"
)

// Harness runs standalone tests in bounded-size batches of isolated child
// processes and verifies distributed liveness with a deadlock probe.
type Harness struct {
	ctx     context.Context
	config  *Config
	version string

	discoverer discovery.Discoverer
	blocklist  *filter.Blocklist
	runner     *runner.Runner
	probe      *probe.Probe // nil when the probe is skipped
	formatter  ResultFormatter
	metrics    MetricsReporter
	result     *runner.Result

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func New(ctx context.Context, config *Config, version string) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug().
		Str("testDir", config.TestDir).
		Str("configFile", config.ConfigFile).
		Int("batchSize", config.BatchSize).
		Dur("runInterval", config.RunInterval).
		Bool("runOnce", config.RunOnce).
		Bool("skipProbe", config.SkipProbe).
		Msg("creating harness")

	var discoverer discovery.Discoverer
	switch config.File.Discoverer {
	case DiscovererGoTest:
		discoverer = &discovery.GoTestDiscoverer{
			PkgPath: config.File.GoPackage,
			WorkDir: config.TestDir,
		}
	default:
		var err error
		discoverer, err = discovery.NewCommandDiscoverer(discovery.CommandConfig{
			Command:         config.File.CollectCmd,
			TestDir:         config.TestDir,
			Marker:          config.Marker,
			NoTestsExitCode: config.File.NoTestsExitCode,
			Log:             config.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create discoverer: %w", err)
		}
	}

	testRunner, err := runner.NewRunner(runner.Config{
		BatchSize:   config.BatchSize,
		LogDir:      config.LogDir,
		RunCmd:      config.File.RunCmd,
		PassThrough: config.File.PassThrough,
		TestTimeout: config.TestTimeout,
		WorkDir:     config.TestDir,
		Log:         config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}

	var deadlockProbe *probe.Probe
	if !config.SkipProbe {
		deadlockProbe, err = probe.New(probe.Config{
			Launcher: config.File.Probe.Launcher,
			Marker:   config.File.Probe.Marker,
			WorkDir:  config.TestDir,
			Log:      config.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create deadlock probe: %w", err)
		}
	}

	return &Harness{
		ctx:        ctx,
		config:     config,
		version:    version,
		discoverer: discoverer,
		blocklist:  filter.NewBlocklist(config.File.Blocklist),
		runner:     testRunner,
		probe:      deadlockProbe,
		formatter:  NewConsoleResultFormatter(config.Log),
		metrics:    NewDefaultMetricsReporter(),
		done:       make(chan struct{}),
	}, nil
}

// Start runs the standalone tests, either once or periodically at the
// configured interval. In run-once mode it returns when the run completes; in
// continuous mode it returns after the first run and keeps re-running in the
// background until Stop or context cancellation.
func (h *Harness) Start(ctx context.Context) error {
	h.ctx = ctx
	h.done = make(chan struct{})
	h.running.Store(true)

	if h.config.RunOnce {
		h.config.Log.Info().Msg("starting standalone-runner in run-once mode")
		return h.runTests()
	}

	h.config.Log.Info().Dur("interval", h.config.RunInterval).
		Msg("starting standalone-runner in continuous mode")

	// Run tests immediately on startup
	if err := h.runTests(); err != nil {
		return err
	}

	// Start a goroutine for periodic test execution
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.config.Log.Debug().Dur("interval", h.config.RunInterval).
			Msg("starting periodic test runner goroutine")

		for {
			select {
			case <-time.After(h.config.RunInterval):
				if !h.running.Load() {
					h.config.Log.Debug().Msg("service stopped, exiting periodic test runner")
					return
				}

				h.config.Log.Info().Msg("running periodic tests")
				if err := h.runTests(); err != nil {
					h.config.Log.Error().Err(err).Msg("error running periodic tests")
				}

			case <-h.done:
				h.config.Log.Debug().Msg("done signal received, stopping periodic test runner")
				return

			case <-ctx.Done():
				h.config.Log.Debug().Msg("context canceled, stopping periodic test runner")
				h.running.Store(false)
				return
			}
		}
	}()
	return nil
}

// runTests performs one complete run: discover, filter, execute in batches,
// probe, and report.
func (h *Harness) runTests() error {
	start := time.Now()
	runID := uuid.New().String()
	h.config.Log.Info().Str("run_id", runID).Msg("running standalone tests")

	ids, err := h.discoverer.Discover(h.ctx)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("discovery failed: %w", err))
	}

	result := runner.NewResult(runID)
	h.result = result

	// The report must surface before exit on every path, including when the
	// run aborts partway through a batch.
	defer func() {
		result.Finish(time.Since(start))
		h.formatter.FormatResults(result)
		h.metrics.ReportResults(runID, result)
		h.config.Log.Info().Str("run_id", runID).
			Dur("duration", result.Duration()).
			Msg("test run completed")
	}()

	ordered := make([]discovery.TestID, 0, len(ids))
	kept := make([]discovery.TestID, 0, len(ids))
	for _, id := range ids {
		id = discovery.NormalizePrefix(id, h.config.File.StripPrefix)
		ordered = append(ordered, id)
		if h.blocklist.Match(id) {
			h.config.Log.Info().Str("test", string(id)).Msg("skipping blocklisted test")
			result.RecordSkipped(id)
			continue
		}
		kept = append(kept, id)
	}
	result.SetDiscoveryOrder(ordered)

	if err := h.runner.Run(h.ctx, kept, result); err != nil {
		return NewRuntimeError(err)
	}

	if h.probe != nil {
		if err := h.probe.Run(h.ctx); err != nil {
			if errors.Is(err, probe.ErrMarkerNotFound) {
				return NewProbeFailureError(h.probe.Marker())
			}
			return NewRuntimeError(fmt.Errorf("deadlock probe: %w", err))
		}
	}
	return nil
}

// Result returns the result of the most recent run.
func (h *Harness) Result() *runner.Result {
	return h.result
}

// Stop stops the harness.
func (h *Harness) Stop(ctx context.Context) error {
	h.config.Log.Info().Msg("stopping standalone-runner")

	if !h.running.Load() {
		h.config.Log.Debug().Msg("service already stopped, nothing to do")
		return nil
	}

	// Update running state first to prevent new test runs
	h.running.Store(false)
	close(h.done)

	h.config.Log.Info().Msg("standalone-runner stopped")
	return nil
}

// Stopped returns true if the harness is stopped.
func (h *Harness) Stopped() bool {
	return !h.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (h *Harness) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.config.Log.Warn().Err(ctx.Err()).Msg("timed out waiting for goroutines to terminate")
		return ctx.Err()
	}
}
