// Package logging provides the output sinks used by the harness: the per-batch
// shared append-only log, ANSI sanitization for replayed output, and a bounded
// tail buffer for retaining output snippets.
package logging

import (
	"bufio"
	"fmt"
	"io"

	"github.com/acarl005/stripansi"
)

// stripANSIEscapeSequences removes ANSI escape sequences (colors, cursor
// movement) from a string. Escaped sequences that appear as literal text
// (e.g. `\x1b` spelled out inside quotes) are preserved.
func stripANSIEscapeSequences(s string) string {
	return stripansi.Strip(s)
}

// CopySanitized copies src to dst line by line, stripping ANSI escape
// sequences. Buffered test output replayed into CI logs keeps color codes
// otherwise, which most log viewers render as garbage.
func CopySanitized(dst io.Writer, src io.Reader) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(dst, stripANSIEscapeSequences(scanner.Text())); err != nil {
			return err
		}
	}
	return scanner.Err()
}
