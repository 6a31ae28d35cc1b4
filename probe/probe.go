// Package probe implements the deadlock liveness smoke test: a fixed
// two-process group launched under an external process-group coordinator,
// expected to emit a literal success marker in its combined output. A missing
// marker means coordination deadlock detection failed, which is fatal to the
// overall run even when every batched test passed.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/lightci/standalone-runner/logging"
)

// DefaultMarker is the success token the probe script prints once the process
// group gets past the coordination barrier.
const DefaultMarker = "SUCCEEDED"

// ErrMarkerNotFound is returned when the process group terminated without
// emitting the success marker.
var ErrMarkerNotFound = errors.New("success marker not found in probe output")

// CmdBuilder constructs the coordinator process. Tests inject fakes here.
type CmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd

// Config holds configuration for creating a Probe.
type Config struct {
	// Launcher is the full coordinator invocation, fixed topology included,
	// e.g. ["torchrun", "--nnodes=1", "--nproc-per-node=2",
	// "--max-restarts=0", "probe.py"].
	Launcher []string
	// Marker is the literal success token to look for in combined output.
	Marker  string
	WorkDir string
	// Output receives the probe's combined output as it streams; defaults to
	// os.Stdout.
	Output     io.Writer
	Log        zerolog.Logger
	CmdBuilder CmdBuilder
}

// Probe launches the process group and verifies liveness.
type Probe struct {
	cfg Config
}

func New(cfg Config) (*Probe, error) {
	if len(cfg.Launcher) == 0 {
		return nil, fmt.Errorf("probe launcher command is required")
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = func(ctx context.Context, name string, arg ...string) *exec.Cmd {
			return exec.CommandContext(ctx, name, arg...)
		}
	}
	return &Probe{cfg: cfg}, nil
}

// Marker returns the configured success token.
func (p *Probe) Marker() string {
	return p.cfg.Marker
}

// Run launches the coordinator, streams its combined output, and checks for
// the success marker once the process group has terminated. Marker presence
// decides the outcome, not the exit code: this is a liveness check, not a
// correctness check of output values.
func (p *Probe) Run(ctx context.Context) error {
	scanner := newMarkerScanner(p.cfg.Marker)
	tail := logging.NewTailBuffer(0)
	sink := io.MultiWriter(p.cfg.Output, scanner, tail)

	cmd := p.cfg.CmdBuilder(ctx, p.cfg.Launcher[0], p.cfg.Launcher[1:]...)
	cmd.Dir = p.cfg.WorkDir
	cmd.Stdout = sink
	cmd.Stderr = sink

	p.cfg.Log.Info().
		Str("cmd", shellescape.QuoteCommand(p.cfg.Launcher)).
		Str("marker", p.cfg.Marker).
		Msg("running deadlock probe")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch deadlock probe: %w", err)
	}
	runErr := cmd.Wait()

	if scanner.Found() {
		if runErr != nil {
			p.cfg.Log.Warn().Err(runErr).Msg("probe exited non-zero but emitted its success marker")
		}
		p.cfg.Log.Info().Msg("deadlock probe succeeded")
		return nil
	}

	if runErr != nil {
		p.cfg.Log.Error().Err(runErr).Msg("deadlock probe process group failed")
	}
	return fmt.Errorf("%w\nlast probe output:\n%s", ErrMarkerNotFound, tail.String())
}

// markerScanner is an io.Writer that watches a byte stream for a literal
// token. It keeps a carry of len(marker)-1 bytes so tokens split across write
// boundaries are still detected.
type markerScanner struct {
	marker []byte

	mu    sync.Mutex
	carry []byte
	found bool
}

func newMarkerScanner(marker string) *markerScanner {
	return &markerScanner{marker: []byte(marker)}
}

func (s *markerScanner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.found {
		return len(p), nil
	}

	buf := append(s.carry, p...)
	if bytes.Contains(buf, s.marker) {
		s.found = true
		s.carry = nil
		return len(p), nil
	}
	if keep := len(s.marker) - 1; len(buf) > keep {
		buf = buf[len(buf)-keep:]
	}
	s.carry = append([]byte(nil), buf...)
	return len(p), nil
}

func (s *markerScanner) Found() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.found
}
