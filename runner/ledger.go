package runner

import (
	"sort"

	"github.com/loomrun/loomrun/types"
)

// Ledger accumulates the failing cases discovered for each suite, retains
// the suite reference needed to re-invoke it, and tracks the checkpoint
// directories touched along the way. It is built by a single sequential
// discovery pass per suite and then handed to the re-run scheduler, which
// only reads it; no locking is needed.
type Ledger struct {
	failed         map[string][]types.FailingCase
	suites         map[string]types.TestSuite
	checkpointDirs map[string]struct{}
	current        *types.TestSuite
}

// NewLedger returns an empty ledger, fresh per top-level package.
func NewLedger() *Ledger {
	return &Ledger{
		failed:         make(map[string][]types.FailingCase),
		suites:         make(map[string]types.TestSuite),
		checkpointDirs: make(map[string]struct{}),
	}
}

// RecordFailure records one failing case for the suite currently under
// discovery. The suite reference is not retained until FinishSuite.
func (l *Ledger) RecordFailure(suite types.TestSuite, testName, checkpointPath, checkpointDir string) {
	if l.current == nil {
		s := suite
		l.current = &s
	}
	l.checkpointDirs[checkpointDir] = struct{}{}
	l.failed[suite.Name] = append(l.failed[suite.Name], types.FailingCase{
		Suite:      suite.Name,
		Test:       testName,
		Checkpoint: checkpointPath,
	})
}

// FinishSuite ends the suite's discovery pass. The suite reference is
// retained iff at least one failing case was recorded for it, so a suite
// with no failures leaves no trace in the ledger.
func (l *Ledger) FinishSuite(suite types.TestSuite) {
	if l.current != nil && len(l.failed[suite.Name]) > 0 {
		l.suites[suite.Name] = *l.current
	}
	l.current = nil
}

// FailingCases returns the recorded cases for one suite, in discovery order.
func (l *Ledger) FailingCases(suiteName string) []types.FailingCase {
	return l.failed[suiteName]
}

// SuiteNames returns the suites with at least one failing case, sorted for
// deterministic iteration.
func (l *Ledger) SuiteNames() []string {
	names := make([]string, 0, len(l.suites))
	for name := range l.suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suite returns the retained suite reference for a suite name.
func (l *Ledger) Suite(suiteName string) (types.TestSuite, bool) {
	s, ok := l.suites[suiteName]
	return s, ok
}

// CheckpointDirs returns the checkpoint directories touched during
// discovery, sorted, for final reporting.
func (l *Ledger) CheckpointDirs() []string {
	dirs := make([]string, 0, len(l.checkpointDirs))
	for dir := range l.checkpointDirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// TotalCases returns the number of failing cases across all suites.
func (l *Ledger) TotalCases() int {
	n := 0
	for _, cases := range l.failed {
		n += len(cases)
	}
	return n
}

// Empty reports whether no failing case was recorded at all.
func (l *Ledger) Empty() bool { return l.TotalCases() == 0 }
