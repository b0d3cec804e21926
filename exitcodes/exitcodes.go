// Package exitcodes defines the standard exit codes used by loomrun.
package exitcodes

// Exit code constants used by loomrun
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when no test fails
// * TestFailure (1): Used when one or more loom tests fail
// * RuntimeErr (2): Used for runtime errors such as panics, bad configuration
// or an unreadable workspace
const (
	Success     = 0 // No failing tests
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors or timeouts
)
