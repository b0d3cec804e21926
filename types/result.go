package types

import (
	"fmt"
	"unicode/utf8"
)

// RerunResult is the outcome of one failing case's diagnostic re-run:
// the pretty name and the full captured process output. Produced exactly
// once per FailingCase.
type RerunResult struct {
	Name     string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// Err is set when the re-run task itself failed (process spawn failure,
	// missing binary). A non-zero ExitCode alone is not an error; the case
	// is known to fail.
	Err error
}

// StdoutText returns the captured standard output as text, or an error if
// the output is not valid UTF-8.
func (r *RerunResult) StdoutText() (string, error) {
	if !utf8.Valid(r.Stdout) {
		return "", fmt.Errorf("stdout from test %q was not utf8", r.Name)
	}
	return string(r.Stdout), nil
}

// StderrText returns the captured standard error as text, or an error if
// the output is not valid UTF-8.
func (r *RerunResult) StderrText() (string, error) {
	if !utf8.Valid(r.Stderr) {
		return "", fmt.Errorf("stderr from test %q was not utf8", r.Name)
	}
	return string(r.Stderr), nil
}
