// Package runner executes filtered tests as isolated child processes in
// fixed-size batches. Every batch is a full barrier: all members are launched,
// all are joined, the shared batch log is flushed, and only then does the next
// batch start. Bounding concurrency this way keeps the resource ceiling
// deterministic while still parallelizing independent tests.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lightci/standalone-runner/discovery"
	"github.com/lightci/standalone-runner/logging"
)

// Config holds configuration for creating a new Runner.
type Config struct {
	BatchSize   int
	LogDir      string // directory for per-batch shared logs; empty = system temp
	RunCmd      []string
	PassThrough []string
	TestTimeout time.Duration
	WorkDir     string
	Output      io.Writer // destination for flushed batch logs; defaults to os.Stdout
	Log         zerolog.Logger
	CmdBuilder  CmdBuilder
	Executor    TestExecutor // optional executor override
}

// Runner schedules batches and owns the per-batch shared log lifecycle.
type Runner struct {
	batchSize int
	logDir    string
	output    io.Writer
	log       zerolog.Logger
	executor  TestExecutor
	tracer    trace.Tracer
}

// NewRunner creates a new batch runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.BatchSize > MaxReasonableBatchSize {
		cfg.Log.Warn().Int("batchSize", cfg.BatchSize).
			Msg("very high batch size requested; consider lower values to avoid resource exhaustion")
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	executor := cfg.Executor
	if executor == nil {
		var err error
		executor, err = NewTestExecutor(ExecutorConfig{
			RunCmd:      cfg.RunCmd,
			PassThrough: cfg.PassThrough,
			TestTimeout: cfg.TestTimeout,
			WorkDir:     cfg.WorkDir,
			Log:         cfg.Log,
			CmdBuilder:  cfg.CmdBuilder,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create test executor: %w", err)
		}
	}

	return &Runner{
		batchSize: cfg.BatchSize,
		logDir:    cfg.LogDir,
		output:    cfg.Output,
		log:       cfg.Log,
		executor:  executor,
		tracer:    otel.Tracer("standalone-runner"),
	}, nil
}

// Run executes ids in batches, appending a Ran record to result at every
// dispatch and the exit code at every completion. Individual test failures are
// recorded and never abort the run; only the runner's own control-flow errors
// (launch plumbing, log I/O) are returned.
func (r *Runner) Run(ctx context.Context, ids []discovery.TestID, result *Result) error {
	if len(ids) == 0 {
		r.log.Debug().Msg("no tests to run")
		return nil
	}

	batches := Batches(ids, r.batchSize)
	r.log.Info().
		Int("totalTests", len(ids)).
		Int("batchSize", r.batchSize).
		Int("batches", len(batches)).
		Msg("starting batched test execution")

	for i, batch := range batches {
		if err := r.runBatch(ctx, i, batch, result); err != nil {
			return err
		}
	}
	return nil
}

// runBatch launches every member of the batch, joins them all, and flushes the
// shared log. The flush is deferred so buffered diagnostics surface even when
// launching or joining fails partway through.
func (r *Runner) runBatch(ctx context.Context, index int, batch []discovery.TestID, result *Result) error {
	ctx, span := r.tracer.Start(ctx, "batch", trace.WithAttributes(
		attribute.Int("batch.index", index),
		attribute.Int("batch.size", len(batch)),
	))
	defer span.End()

	sharedLog, err := logging.NewSharedLog(r.logDir, r.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sharedLog.Flush(r.output); err != nil {
			r.log.Error().Err(err).Msg("failed to flush shared batch log")
		}
	}()

	start := time.Now()
	r.log.Debug().Int("batch", index).Int("size", len(batch)).Msg("launching batch")

	handles := make([]*Handle, 0, len(batch))
	for _, id := range batch {
		h, startErr := r.executor.Start(ctx, id, sharedLog)
		if startErr != nil {
			// Join whatever already launched before surfacing the error, so
			// no child outlives the run unobserved.
			r.join(ctx, handles, result)
			return startErr
		}
		result.RecordRan(h.ID)
		handles = append(handles, h)
	}

	r.join(ctx, handles, result)

	r.log.Info().
		Int("batch", index).
		Int("size", len(batch)).
		Dur("duration", time.Since(start)).
		Msg("batch complete")
	return nil
}

// join is the batch barrier: it blocks until every handle has terminated and
// its exit code is recorded.
func (r *Runner) join(ctx context.Context, handles []*Handle, result *Result) {
	g := new(errgroup.Group)
	for _, h := range handles {
		g.Go(func() error {
			_, span := r.tracer.Start(ctx, "test", trace.WithAttributes(
				attribute.String("test.id", string(h.ID)),
			))
			defer span.End()

			code, err := h.Wait()
			if err != nil {
				r.log.Error().Err(err).Str("test", string(h.ID)).Msg("failed to join test process")
			}
			result.SetExitCode(h.ID, code)
			if code != 0 {
				r.log.Warn().Str("test", string(h.ID)).Int("exitCode", code).Msg("test exited non-zero")
			} else {
				r.log.Debug().Str("test", string(h.ID)).Msg("test completed")
			}
			return nil
		})
	}
	// Per-test failures are recorded above, never propagated: the group is
	// used purely as the join barrier.
	_ = g.Wait()
}
