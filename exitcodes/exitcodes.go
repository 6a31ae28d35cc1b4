// Package exitcodes defines the standard exit codes used by standalone-runner.
package exitcodes

// Exit code constants used by standalone-runner
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
//   - Success (0): Normal completion, including runs with individual test failures.
//     Tests are self-reporting through the underlying framework, not through the
//     harness exit code.
//   - ProbeFailure (1): The deadlock probe terminated without emitting its success
//     marker, meaning the liveness guarantee was violated.
//   - RuntimeErr (2): Runtime errors such as discovery failures, configuration
//     errors or process launch failures.
const (
	Success      = 0 // Normal completion
	ProbeFailure = 1 // Deadlock probe missed its success marker
	RuntimeErr   = 2 // Runtime errors
)
