package runner

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomrun/loomrun/types"
)

func seedLedger(checkpoints *CheckpointStore, suite types.TestSuite, tests ...string) *Ledger {
	ledger := NewLedger()
	suiteDir := checkpoints.SuiteDir(suite.BinaryName())
	for _, test := range tests {
		ledger.RecordFailure(suite, test, checkpoints.CasePath(suiteDir, test), suiteDir)
	}
	ledger.FinishSuite(suite)
	return ledger
}

func drainResults(t *testing.T, results <-chan types.RerunResult, count int) map[string]types.RerunResult {
	t.Helper()
	got := make(map[string]types.RerunResult)
	for res := range results {
		got[res.Name] = res
	}
	require.Len(t, got, count)
	return got
}

func TestScheduleRerunsOneResultPerCase(t *testing.T) {
	factory := newFakeFactory()
	factory.captures["/bin/buffer_tests-abc"] = types.RerunResult{
		Stdout:   []byte("exploration output"),
		ExitCode: 101,
	}

	r, checkpoints := newTestRunner(t, factory)
	suite := types.TestSuite{Name: "buffer_tests", Path: "/bin/buffer_tests-abc"}
	ledger := seedLedger(checkpoints, suite, "drop_full", "race_push")
	require.NoError(t, checkpoints.EnsureDir(checkpoints.SuiteDir(suite.BinaryName())))

	results, count, err := r.ScheduleReruns(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got := drainResults(t, results, 2)
	for _, name := range []string{"buffer_tests::drop_full", "buffer_tests::race_push"} {
		res, ok := got[name]
		require.True(t, ok, "missing result for %s", name)
		require.NoError(t, res.Err)
		assert.Equal(t, 101, res.ExitCode)
		assert.Equal(t, "exploration output", string(res.Stdout))
	}

	// Fresh case: exactly one checkpoint run plus one diagnostic run each.
	assert.Len(t, factory.callsFor("run"), 2)
	assert.Len(t, factory.callsFor("capture"), 2)
}

func TestScheduleRerunsSkipsExistingCheckpoints(t *testing.T) {
	factory := newFakeFactory()
	r, checkpoints := newTestRunner(t, factory)
	suite := types.TestSuite{Name: "buffer_tests", Path: "/bin/buffer_tests-abc"}

	suiteDir := checkpoints.SuiteDir(suite.BinaryName())
	require.NoError(t, checkpoints.EnsureDir(suiteDir))
	require.NoError(t, os.WriteFile(checkpoints.CasePath(suiteDir, "drop_full"), []byte(`{"seed":1}`), 0o644))

	ledger := seedLedger(checkpoints, suite, "drop_full")
	results, count, err := r.ScheduleReruns(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	drainResults(t, results, 1)

	// The checkpoint already exists, so no generation run is spawned.
	assert.Empty(t, factory.callsFor("run"))
	assert.Len(t, factory.callsFor("capture"), 1)
}

// A malformed checkpoint left by an interrupted run is regenerated instead
// of resumed from.
func TestScheduleRerunsRegeneratesMalformedCheckpoint(t *testing.T) {
	factory := newFakeFactory()
	r, checkpoints := newTestRunner(t, factory)
	suite := types.TestSuite{Name: "buffer_tests", Path: "/bin/buffer_tests-abc"}

	suiteDir := checkpoints.SuiteDir(suite.BinaryName())
	require.NoError(t, checkpoints.EnsureDir(suiteDir))
	require.NoError(t, os.WriteFile(checkpoints.CasePath(suiteDir, "drop_full"), []byte(`{"seed`), 0o644))

	ledger := seedLedger(checkpoints, suite, "drop_full")
	results, _, err := r.ScheduleReruns(context.Background(), ledger)
	require.NoError(t, err)
	drainResults(t, results, 1)

	assert.Len(t, factory.callsFor("run"), 1)
}

func TestScheduleRerunsSpawnFailureIsIsolated(t *testing.T) {
	factory := newFakeFactory()
	factory.runErrs["/bin/queue_tests-def"] = errors.New("no such file or directory")
	factory.captures["/bin/buffer_tests-abc"] = types.RerunResult{ExitCode: 101}

	r, checkpoints := newTestRunner(t, factory)
	buffer := types.TestSuite{Name: "buffer_tests", Path: "/bin/buffer_tests-abc"}
	queue := types.TestSuite{Name: "queue_tests", Path: "/bin/queue_tests-def"}

	ledger := NewLedger()
	bufferDir := checkpoints.SuiteDir(buffer.BinaryName())
	queueDir := checkpoints.SuiteDir(queue.BinaryName())
	ledger.RecordFailure(buffer, "drop_full", checkpoints.CasePath(bufferDir, "drop_full"), bufferDir)
	ledger.FinishSuite(buffer)
	ledger.RecordFailure(queue, "pop_empty", checkpoints.CasePath(queueDir, "pop_empty"), queueDir)
	ledger.FinishSuite(queue)

	results, count, err := r.ScheduleReruns(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got := drainResults(t, results, 2)

	failed := got["queue_tests::pop_empty"]
	require.Error(t, failed.Err)
	assert.Contains(t, failed.Err.Error(), "spawn process to checkpoint")

	ok := got["buffer_tests::drop_full"]
	require.NoError(t, ok.Err)
	assert.Equal(t, 101, ok.ExitCode)
}

func TestScheduleRerunsEmptyLedger(t *testing.T) {
	factory := newFakeFactory()
	r, _ := newTestRunner(t, factory)

	results, count, err := r.ScheduleReruns(context.Background(), NewLedger())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, open := <-results
	assert.False(t, open, "results channel should be closed")
	assert.Empty(t, factory.calls)
}

func TestScheduleRerunsForwardsTestArgs(t *testing.T) {
	factory := newFakeFactory()
	r, checkpoints := newTestRunner(t, factory, func(cfg *Config) {
		cfg.TestArgs = []string{"--nocapture"}
	})
	suite := types.TestSuite{Name: "buffer_tests", Path: "/bin/buffer_tests-abc"}
	ledger := seedLedger(checkpoints, suite, "drop_full")

	results, _, err := r.ScheduleReruns(context.Background(), ledger)
	require.NoError(t, err)
	drainResults(t, results, 1)

	runs := factory.callsFor("run")
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"drop_full", "--nocapture"}, runs[0].spec.Args)

	captures := factory.callsFor("capture")
	require.Len(t, captures, 1)
	assert.Contains(t, captures[0].spec.Env, "LOOM_LOCATION=1")
}
