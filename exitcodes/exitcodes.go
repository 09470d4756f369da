// Package exitcodes defines the standard exit codes used by op-orchestrator.
package exitcodes

// Exit code constants used by op-orchestrator
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): The run completed; per-test failures do not change this
// * TestFailure (1): Strict mode only, the combined report counted failures
// * RuntimeErr (2): Runtime errors such as an unloadable manifest
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
