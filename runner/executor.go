package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/lightci/standalone-runner/discovery"
	"github.com/lightci/standalone-runner/logging"
)

var _ TestExecutor = (*procExecutor)(nil)

// CmdBuilder constructs the child process for one test invocation. Tests
// inject fakes here.
type CmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd

// DefaultCmdBuilder builds a plain exec.Cmd.
func DefaultCmdBuilder(ctx context.Context, name string, arg ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, arg...)
}

// Handle identifies one launched test process. The scheduler joins handles at
// the batch barrier.
type Handle struct {
	ID  discovery.TestID
	cmd *exec.Cmd
	out *os.File
}

// Wait blocks until the child exits, closes its shared-log handle, and returns
// the exit code. A non-zero exit is not an error: isolation means one test's
// crash never aborts its siblings. Only plumbing failures return an error.
func (h *Handle) Wait() (int, error) {
	defer func() { _ = h.out.Close() }()

	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	exitErr := &exec.ExitError{}
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to wait for test process: %w", err)
}

// TestExecutor launches individual tests as isolated child processes.
type TestExecutor interface {
	// Start launches id with stdout and stderr merged into sharedLog via an
	// append-only handle. It returns immediately; the caller is responsible
	// for joining the handle.
	Start(ctx context.Context, id discovery.TestID, sharedLog *logging.SharedLog) (*Handle, error)
}

// ExecutorConfig holds configuration for creating a process executor.
type ExecutorConfig struct {
	// RunCmd is the per-test framework invocation, e.g.
	// ["python", "-m", "pytest", "-v"]. The test identifier is appended.
	RunCmd []string
	// PassThrough is forwarded opaquely after the test identifier.
	PassThrough []string
	// TestTimeout is forwarded to the framework ("--timeout"); the harness
	// itself imposes no deadline.
	TestTimeout time.Duration
	WorkDir     string
	Log         zerolog.Logger
	CmdBuilder  CmdBuilder
}

type procExecutor struct {
	cfg ExecutorConfig
}

// NewTestExecutor creates a new process-based test executor.
func NewTestExecutor(cfg ExecutorConfig) (TestExecutor, error) {
	if len(cfg.RunCmd) == 0 {
		return nil, fmt.Errorf("run command cannot be empty")
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = DefaultCmdBuilder
	}
	return &procExecutor{cfg: cfg}, nil
}

func (e *procExecutor) Start(ctx context.Context, id discovery.TestID, sharedLog *logging.SharedLog) (*Handle, error) {
	args := e.buildTestArgs(id)

	out, err := sharedLog.OpenAppend()
	if err != nil {
		return nil, err
	}

	cmd := e.cfg.CmdBuilder(ctx, e.cfg.RunCmd[0], args...)
	cmd.Dir = e.cfg.WorkDir
	cmd.Stdout = out
	cmd.Stderr = out

	e.cfg.Log.Info().
		Str("test", string(id)).
		Str("cmd", shellescape.QuoteCommand(append([]string{e.cfg.RunCmd[0]}, args...))).
		Msg("running test")

	if err := cmd.Start(); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("failed to launch test %s: %w", id, err)
	}

	return &Handle{ID: id, cmd: cmd, out: out}, nil
}

func (e *procExecutor) buildTestArgs(id discovery.TestID) []string {
	args := append([]string{}, e.cfg.RunCmd[1:]...)
	if e.cfg.TestTimeout > 0 {
		args = append(args, "--timeout", fmt.Sprintf("%.0f", e.cfg.TestTimeout.Seconds()))
	}
	args = append(args, string(id))
	args = append(args, e.cfg.PassThrough...)
	return args
}
