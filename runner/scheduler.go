package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loomrun/loomrun/metrics"
	"github.com/loomrun/loomrun/types"
)

// ScheduleReruns fans out one concurrent task per failing case in the
// ledger. Each task regenerates the case's checkpoint if needed, then
// re-runs it with diagnostics enabled, capturing the output. Completed
// results arrive on the returned channel in completion order, one per case;
// the channel is closed once every task has reported. The second return
// value is the number of scheduled tasks.
//
// Tasks share nothing mutable: each owns a disjoint checkpoint file and a
// disjoint (suite, test) filter, and the ledger is only read, so no locking
// is required. One task's spawn failure surfaces as that task's result and
// never blocks its siblings.
func (r *Runner) ScheduleReruns(ctx context.Context, ledger *Ledger) (<-chan types.RerunResult, int, error) {
	results := make(chan types.RerunResult)
	var wg sync.WaitGroup
	count := 0

	for _, suiteName := range ledger.SuiteNames() {
		suite, ok := ledger.Suite(suiteName)
		if !ok {
			return nil, 0, fmt.Errorf("missing test command for suite %q", suiteName)
		}
		for _, c := range ledger.FailingCases(suiteName) {
			wg.Add(1)
			count++
			go func(suite types.TestSuite, c types.FailingCase) {
				defer wg.Done()
				results <- r.rerunCase(ctx, suite, c)
			}(suite, c)
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, count, nil
}

// rerunCase executes the two-step re-run for one failing case: checkpoint
// generation (skipped when the file already exists), then the diagnostic
// run resumed from the checkpoint.
func (r *Runner) rerunCase(ctx context.Context, suite types.TestSuite, c types.FailingCase) types.RerunResult {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("rerun %s", c.PrettyName()))
	defer span.End()

	name := c.PrettyName()
	t0 := time.Now()

	if r.checkpoints.CheckpointExists(c.Checkpoint) {
		r.log.Debug("Already checkpointed", "test", name)
		metrics.RecordCheckpointReused(r.runID, suite.Name)
	} else {
		r.log.Info("Generating checkpoint", "test", name)
		// The case is known to fail, so a non-zero exit here is the expected
		// outcome; only failing to spawn the process at all is an error.
		if _, err := r.factory.Run(ctx, CommandSpec{
			Path: suite.Path,
			Args: append([]string{c.Test}, r.testArgs...),
			Env:  r.loom.CheckpointEnv(c.Checkpoint),
		}); err != nil {
			metrics.RecordRerun(r.runID, suite.Name, "spawn_error")
			return types.RerunResult{Name: name, Err: fmt.Errorf("spawn process to checkpoint %s: %w", name, err)}
		}
		r.log.Debug("Checkpointed", "test", name, "elapsed", time.Since(t0), "file", c.Checkpoint)
	}

	stdout, stderr, exitCode, err := r.factory.Capture(ctx, CommandSpec{
		Path: suite.Path,
		Args: append([]string{c.Test}, r.testArgs...),
		Env:  r.loom.DiagnosticEnv(c.Checkpoint),
	})
	if err != nil {
		metrics.RecordRerun(r.runID, suite.Name, "spawn_error")
		return types.RerunResult{Name: name, Err: fmt.Errorf("spawn process to rerun %s: %w", name, err)}
	}

	metrics.RecordRerun(r.runID, suite.Name, "completed")
	return types.RerunResult{
		Name:     name,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
	}
}
