package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripANSIEscapeSequences(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "No ANSI sequences",
			input:    "Simple text without colors",
			expected: "Simple text without colors",
		},
		{
			name:     "Basic color sequence",
			input:    "\x1b[32mGreen text\x1b[0m",
			expected: "Green text",
		},
		{
			name:     "Multiple color sequences",
			input:    "\x1b[32mPASSED\x1b[0m tests/a.py::test_one \x1b[33m0.42s\x1b[0m",
			expected: "PASSED tests/a.py::test_one 0.42s",
		},
		{
			name:     "Bold and color sequences",
			input:    "\x1b[1m\x1b[32mBold Green\x1b[0m normal text",
			expected: "Bold Green normal text",
		},
		{
			name:     "Multiple parameters in escape sequence",
			input:    "\x1b[1;32mBold Green\x1b[0m text",
			expected: "Bold Green text",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Only ANSI sequences",
			input:    "\x1b[32m\x1b[0m\x1b[1m\x1b[0m",
			expected: "",
		},
		{
			name:     "Escaped sequences spelled out as literal text are preserved",
			input:    "\"\\x1b[32mINFO \\x1b[0m\" message",
			expected: "\"\\x1b[32mINFO \\x1b[0m\" message",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := stripANSIEscapeSequences(tc.input)
			assert.Equal(t, tc.expected, actual)
		})
	}
}
