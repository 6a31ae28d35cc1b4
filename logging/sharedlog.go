package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
)

// SharedLog is the append-only byte sink shared by every executor within one
// batch. Executors hold their own O_APPEND handles and never seek or truncate,
// so OS append semantics are the only interleaving discipline required. The
// reporter is the sole owner of truncation and removal, and only flushes after
// the batch barrier, so no executor ever writes to a log that has been removed.
type SharedLog struct {
	path string
	log  zerolog.Logger
}

// NewSharedLog creates the backing file for one batch. An empty dir falls back
// to the system temp directory.
func NewSharedLog(dir string, log zerolog.Logger) (*SharedLog, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "standalone-batch-*.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create shared log: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close shared log: %w", err)
	}
	log.Debug().Str("path", path).Msg("created shared batch log")
	return &SharedLog{path: path, log: log}, nil
}

// Path returns the location of the backing file.
func (l *SharedLog) Path() string {
	return l.path
}

// OpenAppend returns a new append-only handle for one executor. Each child
// process gets its own handle so a crashed child cannot corrupt its siblings'.
func (l *SharedLog) OpenAppend() (*os.File, error) {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared log for append: %w", err)
	}
	return f, nil
}

// Flush replays the buffered contents into w (sanitized) and removes the
// backing file so the next batch starts clean. Flushing an already-flushed
// log is a no-op, which lets a deferred safety flush coexist with the normal
// per-batch flush.
func (l *SharedLog) Flush(w io.Writer) error {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open shared log for flush: %w", err)
	}
	copyErr := CopySanitized(w, f)
	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return fmt.Errorf("failed to flush shared log: %w", copyErr)
	}
	l.log.Debug().Str("path", l.path).Msg("flushed shared batch log")
	return os.Remove(l.path)
}
