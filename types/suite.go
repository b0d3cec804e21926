package types

import (
	"fmt"
	"path/filepath"
)

// SuiteKind distinguishes a package's library unit-test binary from an
// integration-test binary.
type SuiteKind string

const (
	SuiteKindLib         SuiteKind = "lib"
	SuiteKindIntegration SuiteKind = "integration"
)

// TestSuite identifies one compiled model-checking test binary.
type TestSuite struct {
	// Name is the logical suite name (e.g. the crate or package target name).
	Name string `yaml:"name"`
	// Path is the resolved filesystem path to the executable. The file name
	// embeds the build hash, so it content-addresses the binary.
	Path string `yaml:"path"`
	// Kind reports whether this is a library unit-test binary or an
	// integration-test binary.
	Kind SuiteKind `yaml:"kind,omitempty"`
	// Package is the name of the package this suite belongs to.
	Package string `yaml:"-"`
}

// BinaryName returns the file name of the compiled binary, used to key
// checkpoint directories by binary content.
func (s TestSuite) BinaryName() string {
	return filepath.Base(s.Path)
}

// FailingCase records one test discovered to fail, together with the
// checkpoint file its re-run will resume from. Never mutated after creation.
type FailingCase struct {
	Suite      string
	Test       string
	Checkpoint string
}

// PrettyName returns the "<suite>::<test>" form used in logs and reports.
func (c FailingCase) PrettyName() string {
	return fmt.Sprintf("%s::%s", c.Suite, c.Test)
}

// SuiteCounts holds the terminal counters a suite reports when it finishes.
type SuiteCounts struct {
	Passed      int
	Failed      int
	Ignored     int
	Measured    int
	FilteredOut int
}
