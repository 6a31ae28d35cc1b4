// Package discovery enumerates the test identifiers a run will execute.
// Discovery is ordered: the sequence returned here fixes the report order for
// the whole run.
package discovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// TestID is an opaque string identifying one test invocation: a file or
// package path plus an optional parametrization suffix, joined by "::".
type TestID string

// Separator joins the location and test-name components of a TestID.
const Separator = "::"

// Discoverer produces the ordered list of test identifiers for one run.
type Discoverer interface {
	Discover(ctx context.Context) ([]TestID, error)
}

// CmdBuilder constructs the child process for a command invocation. Tests
// inject fakes here.
type CmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd

// DefaultCmdBuilder builds a plain exec.Cmd.
func DefaultCmdBuilder(ctx context.Context, name string, arg ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, arg...)
}

// CommandConfig holds configuration for creating a CommandDiscoverer.
type CommandConfig struct {
	// Command is the collect invocation, e.g.
	// ["python", "-m", "pytest", "--collect-only", "-q"].
	Command []string
	// TestDir is appended to the command as the collection root.
	TestDir string
	// Marker selects standalone tests (forwarded as "-m <marker>"); empty
	// disables marker selection.
	Marker string
	// NoTestsExitCode is the collect command's exit code for "nothing
	// matched" (pytest uses 5). That outcome is an empty run, not a failure.
	NoTestsExitCode int
	Log             zerolog.Logger
	CmdBuilder      CmdBuilder
}

// CommandDiscoverer shells out to the test framework's collect command and
// parses its newline-separated output. A failing collect command (e.g.
// malformed test syntax) is fatal to the whole run.
type CommandDiscoverer struct {
	cfg CommandConfig
}

func NewCommandDiscoverer(cfg CommandConfig) (*CommandDiscoverer, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("collect command is required")
	}
	if cfg.TestDir == "" {
		return nil, fmt.Errorf("test directory is required")
	}
	if cfg.NoTestsExitCode == 0 {
		cfg.NoTestsExitCode = 5
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = DefaultCmdBuilder
	}
	return &CommandDiscoverer{cfg: cfg}, nil
}

// Discover runs the collect command and returns the discovered identifiers in
// collection order.
func (d *CommandDiscoverer) Discover(ctx context.Context) ([]TestID, error) {
	args := append([]string{}, d.cfg.Command[1:]...)
	if d.cfg.Marker != "" {
		args = append(args, "-m", d.cfg.Marker)
	}
	args = append(args, d.cfg.TestDir)

	cmd := d.cfg.CmdBuilder(ctx, d.cfg.Command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.cfg.Log.Debug().
		Str("cmd", shellescape.QuoteCommand(append([]string{d.cfg.Command[0]}, args...))).
		Msg("collecting tests")

	runErr := cmd.Run()
	if runErr != nil {
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() == d.cfg.NoTestsExitCode {
			d.cfg.Log.Info().Str("marker", d.cfg.Marker).Msg("no tests matched during collection")
			return nil, nil
		}
		return nil, fmt.Errorf("test collection failed: %w\nstderr: %s", runErr, stderr.String())
	}

	ids, err := ParseCollectOutput(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse collect output: %w", err)
	}
	d.cfg.Log.Info().Int("count", len(ids)).Msg("discovered standalone tests")
	return ids, nil
}

// ParseCollectOutput extracts test identifiers from collect output. Parsing
// stops at the first blank line, which precedes the summary trailer, and only
// lines containing the "::" separator qualify as identifiers. Trailer lines
// are recognized by shape, never by counting lines from the end.
func ParseCollectOutput(r io.Reader) ([]TestID, error) {
	var ids []TestID
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		if !strings.Contains(line, Separator) {
			continue
		}
		ids = append(ids, TestID(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// NormalizePrefix strips a root prefix from the location component of id,
// so identifiers collected from absolute paths report as repo-relative.
func NormalizePrefix(id TestID, prefix string) TestID {
	if prefix == "" {
		return id
	}
	s := string(id)
	if !strings.HasPrefix(s, prefix) {
		return id
	}
	s = strings.TrimPrefix(s, prefix)
	s = strings.TrimPrefix(s, "/")
	return TestID(s)
}
