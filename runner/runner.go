package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomrun/loomrun/metrics"
	"github.com/loomrun/loomrun/types"
)

// FormatJSONFlag asks the test binary to emit one structured JSON message
// per line during discovery. Re-runs omit it: their output is captured raw
// for human consumption.
const FormatJSONFlag = "--format=json"

// EventObserver receives the decoded event sequence during discovery so the
// CLI layer can render it. Decode errors are handled by the runner itself
// (logged and skipped) and never reach the observer.
type EventObserver interface {
	// ObserveEvent is called for every successfully decoded event, with the
	// time elapsed since the suite's process was spawned.
	ObserveEvent(suite types.TestSuite, event types.Event, raw string, elapsed time.Duration)

	// ObserveRecovered is called before a suite's discovery run when prior
	// checkpoints mark tests as already known failing.
	ObserveRecovered(suite types.TestSuite, tests []string)
}

// Config configures a Runner.
type Config struct {
	Log         log.Logger
	Loom        LoomConfig
	Filter      string   // optional test-name substring filter
	TestArgs    []string // extra arguments forwarded to every test binary
	Factory     ProcessFactory
	Checkpoints *CheckpointStore
	Observer    EventObserver
	RunID       string
}

// Runner coordinates the two-phase loom workflow for one package: the
// diagnostics-off discovery pass that populates a failure ledger, and the
// concurrent checkpoint-and-rerun phase consuming it.
type Runner struct {
	log         log.Logger
	loom        LoomConfig
	filter      string
	testArgs    []string
	factory     ProcessFactory
	checkpoints *CheckpointStore
	observer    EventObserver
	tracer      trace.Tracer
	runID       string
}

// NewRunner validates cfg and creates a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Factory == nil {
		return nil, errors.New("process factory is required")
	}
	if cfg.Checkpoints == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Runner{
		log:         cfg.Log,
		loom:        cfg.Loom,
		filter:      cfg.Filter,
		testArgs:    cfg.TestArgs,
		factory:     cfg.Factory,
		checkpoints: cfg.Checkpoints,
		observer:    cfg.Observer,
		tracer:      otel.Tracer("loom runner"),
		runID:       cfg.RunID,
	}, nil
}

// DiscoverPackage runs every suite of one package exactly once without
// diagnostics and returns the populated failure ledger. Suites are run
// sequentially; their event streams are processed strictly in emission
// order.
func (r *Runner) DiscoverPackage(ctx context.Context, pkg string, suites []types.TestSuite) (*Ledger, error) {
	ledger := NewLedger()
	for _, suite := range suites {
		if err := r.discoverSuite(ctx, suite, ledger); err != nil {
			return nil, fmt.Errorf("collecting failing tests for package %q: %w", pkg, err)
		}
	}
	return ledger, nil
}

// discoverSuite runs one suite's discovery pass and records its failing
// cases in the ledger.
func (r *Runner) discoverSuite(ctx context.Context, suite types.TestSuite, ledger *Ledger) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("discover %s", suite.Name))
	defer span.End()

	if suite.Kind == types.SuiteKindLib {
		r.log.Info("Running unittests", "path", suite.Path)
	} else {
		r.log.Info("Running suite", "suite", suite.Name, "path", suite.Path)
	}

	suiteDir := r.checkpoints.SuiteDir(suite.BinaryName())
	args := []string{FormatJSONFlag}
	if r.filter != "" {
		args = append(args, r.filter)
	}
	args = append(args, r.testArgs...)

	// Checkpoints left behind by a prior invocation against this same binary
	// mark tests as already known failing: record them without re-discovery
	// and skip them in the spawned run.
	if r.checkpoints.DirExists(suiteDir) {
		recovered, err := r.recoverCheckpointed(suite, suiteDir, ledger)
		if err != nil {
			return err
		}
		for _, test := range recovered {
			args = append(args, "--skip", test)
		}
	} else {
		if err := r.checkpoints.EnsureDir(suiteDir); err != nil {
			return err
		}
	}

	proc, err := r.factory.Stream(ctx, CommandSpec{
		Path: suite.Path,
		Args: args,
		Env:  r.loom.DiscoveryEnv(),
	})
	if err != nil {
		return fmt.Errorf("running test suite %q: %w", suite.Name, err)
	}

	t0 := time.Now()
	for res := range Decode(proc.Stdout()) {
		if res.Err != nil {
			r.log.Warn("Error from test output", "suite", suite.Name, "error", res.Err, "line", res.Raw)
			metrics.RecordDecodeError(suite.Name)
			continue
		}
		r.handleEvent(suite, suiteDir, res, ledger, time.Since(t0))
	}

	// A crashed binary may still have produced a useful event prefix, so an
	// abnormal exit is reported but does not discard what was decoded.
	if err := proc.Wait(); err != nil {
		r.log.Warn("Test suite exited abnormally", "suite", suite.Name, "error", err)
	}

	ledger.FinishSuite(suite)
	return nil
}

func (r *Runner) handleEvent(suite types.TestSuite, suiteDir string, res DecodeResult, ledger *Ledger, elapsed time.Duration) {
	ev := res.Event
	switch ev.Kind {
	case types.EventTestFailed:
		ledger.RecordFailure(suite, ev.Name, r.checkpoints.CasePath(suiteDir, ev.Name), suiteDir)
		metrics.RecordFailingCase(r.runID, suite.Name, ev.Name)
	case types.EventSuiteOk, types.EventSuiteFailed:
		metrics.RecordSuiteFinished(r.runID, suite.Name, ev.Counts, elapsed)
	}
	if r.observer != nil {
		r.observer.ObserveEvent(suite, ev, res.Raw, elapsed)
	}
}

// recoverCheckpointed folds a prior run's checkpoints for this binary into
// the ledger, honoring the test-name filter, and returns the recovered test
// names.
func (r *Runner) recoverCheckpointed(suite types.TestSuite, suiteDir string, ledger *Ledger) ([]string, error) {
	tests, err := r.checkpoints.ListCheckpointed(suiteDir)
	if err != nil {
		return nil, err
	}
	var recovered []string
	for _, test := range tests {
		if r.filter != "" && !strings.Contains(test, r.filter) {
			continue
		}
		ledger.RecordFailure(suite, test, r.checkpoints.CasePath(suiteDir, test), suiteDir)
		metrics.RecordCheckpointReused(r.runID, suite.Name)
		recovered = append(recovered, test)
	}
	if len(recovered) > 0 {
		r.log.Debug("Recovered previously checkpointed tests", "suite", suite.Name, "count", len(recovered))
		if r.observer != nil {
			r.observer.ObserveRecovered(suite, recovered)
		}
	}
	return recovered, nil
}
