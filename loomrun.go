package loomrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/loomrun/loomrun/binaries"
	"github.com/loomrun/loomrun/exitcodes"
	"github.com/loomrun/loomrun/logging"
	"github.com/loomrun/loomrun/runner"
	"github.com/loomrun/loomrun/types"
)

// App drives the two-phase loom workflow: a discovery pass over every test
// binary with diagnostics off, then concurrent checkpoint-accelerated
// diagnostic re-runs of whatever failed.
type App struct {
	ctx         context.Context
	config      *Config
	version     string
	manifest    *binaries.Manifest
	checkpoints *runner.CheckpointStore
	factory     runner.ProcessFactory
	formatter   ResultFormatter
	results     []*PackageResult

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*App, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating loomrun with config",
		"workDir", config.WorkDir,
		"manifest", config.ManifestPath,
		"checkpointDir", config.CheckpointDir,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	manifest, err := loadManifest(config)
	if err != nil {
		return nil, fmt.Errorf("failed to load suite manifest: %w", err)
	}

	checkpoints, err := runner.NewCheckpointStore(config.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	return &App{
		ctx:              ctx,
		config:           config,
		version:          version,
		manifest:         manifest,
		checkpoints:      checkpoints,
		factory:          runner.NewProcessFactory(),
		formatter:        NewConsoleResultFormatter(config.Render, os.Stdout),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// loadManifest reads the suite manifest, or scans the binary directory when
// no manifest is available.
func loadManifest(config *Config) (*binaries.Manifest, error) {
	if config.ManifestPath != "" {
		return binaries.Load(config.ManifestPath)
	}
	pkgName, err := binaries.DefaultPackageName(config.WorkDir)
	if err != nil {
		config.Log.Debug("No go.mod found, naming package after workdir", "error", err)
		pkgName = filepath.Base(config.WorkDir)
	}
	return binaries.Discover(config.BinDir, pkgName)
}

// Start runs the loom workflow, then either exits or re-runs it at the
// configured interval.
func (a *App) Start(ctx context.Context) error {
	// Panics are runtime errors, not test failures
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.done = make(chan struct{})
	a.running.Store(true)

	if a.config.RunOnce {
		a.config.Log.Info("Starting loomrun in run-once mode")
	} else {
		a.config.Log.Info("Starting loomrun in continuous mode", "interval", a.config.RunInterval)
	}

	if err := a.runWorkflow(); err != nil {
		a.config.Log.Error("Runtime error running loom workflow", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Workflow completed, exiting (run-once mode)")

		if a.Failed() {
			return NewTestFailureError(fmt.Sprintf("%d failing test(s)", a.TotalFailing()))
		}

		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Log.Debug("Starting periodic workflow goroutine", "interval", a.config.RunInterval)

		for {
			select {
			case <-time.After(a.config.RunInterval):
				if !a.running.Load() {
					a.config.Log.Debug("Service stopped, exiting periodic workflow runner")
					return
				}

				a.config.Log.Info("Running periodic loom workflow")
				if err := a.runWorkflow(); err != nil {
					a.config.Log.Error("Error running periodic loom workflow", "error", err)
				}

			case <-a.done:
				a.config.Log.Debug("Done signal received, stopping periodic workflow runner")
				return

			case <-ctx.Done():
				a.config.Log.Debug("Context canceled, stopping periodic workflow runner")
				a.running.Store(false)
				return
			}
		}
	}()
	a.config.Log.Debug("loomrun started successfully")
	return nil
}

// runWorkflow executes one full discovery-and-rerun cycle over every
// package in the manifest.
func (a *App) runWorkflow() error {
	runID := uuid.New().String()
	a.config.Log.Info("Running loom workflow...", "run_id", runID)

	fileLogger, err := logging.NewFileLogger(a.config.LogDir, runID)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
	}

	reporter := NewReporter(a.config.Render, os.Stderr, os.Stdout)
	start := time.Now()

	var results []*PackageResult
	for _, pkg := range a.manifest.Packages {
		result, err := a.runPackage(a.ctx, pkg, runID, reporter, fileLogger)
		if err != nil {
			return NewRuntimeError(err)
		}
		results = append(results, result)
	}
	a.results = results

	if err := a.formatter.FormatResults(results); err != nil {
		a.config.Log.Error("Error formatting results", "error", err)
	}
	a.logSummary(fileLogger, runID, time.Since(start))

	a.config.Log.Info("Loom workflow completed",
		"run_id", runID,
		"packages", len(results),
		"failing", a.TotalFailing(),
		"duration", time.Since(start))
	return nil
}

// runPackage runs the two phases for one package: sequential discovery of
// failing cases, then concurrent diagnostic re-runs.
func (a *App) runPackage(ctx context.Context, pkg binaries.Package, runID string, reporter *Reporter, fileLogger *logging.FileLogger) (*PackageResult, error) {
	start := time.Now()
	counter := newSuiteCounter(reporter)

	r, err := runner.NewRunner(runner.Config{
		Log:         a.config.Log,
		Loom:        a.config.Loom,
		Filter:      a.config.Filter,
		TestArgs:    a.config.TestArgs,
		Factory:     a.factory,
		Checkpoints: a.checkpoints,
		Observer:    counter,
		RunID:       runID,
	})
	if err != nil {
		return nil, err
	}

	ledger, err := r.DiscoverPackage(ctx, pkg.Name, pkg.Suites)
	if err != nil {
		return nil, err
	}

	var rerunErrors []error
	if !ledger.Empty() {
		taskResults, count, err := r.ScheduleReruns(ctx, ledger)
		if err != nil {
			return nil, err
		}
		a.config.Log.Info("Re-running failing tests with diagnostics", "package", pkg.Name, "count", count)

		for res := range taskResults {
			if res.Err != nil {
				rerunErrors = append(rerunErrors, fmt.Errorf("%s: %w", res.Name, res.Err))
			}
			if err := reporter.PrintRerunResult(&res); err != nil {
				a.config.Log.Warn("Could not render rerun output", "test", res.Name, "error", err)
			}
			if err := fileLogger.LogRerunResult(&res); err != nil {
				a.config.Log.Warn("Could not persist rerun output", "test", res.Name, "error", err)
			}
		}

		a.config.Log.Info("Completed loom run",
			"package", pkg.Name,
			"failing", ledger.TotalCases(),
			"checkpoints", strings.Join(ledger.CheckpointDirs(), ", "))
	}

	result := &PackageResult{
		Package:     pkg.Name,
		RerunErrors: rerunErrors,
		Duration:    time.Since(start),
	}
	for _, suite := range pkg.Suites {
		result.Suites = append(result.Suites, SuiteSummary{
			Suite:         suite.Name,
			Counts:        counter.counts(suite.Name),
			FailingCases:  len(ledger.FailingCases(suite.Name)),
			CheckpointDir: a.checkpoints.SuiteDir(suite.BinaryName()),
		})
	}
	return result, nil
}

// logSummary appends one line per package to the run's summary file.
func (a *App) logSummary(fileLogger *logging.FileLogger, runID string, duration time.Duration) {
	if err := fileLogger.LogSummary(fmt.Sprintf("run %s (%s)", runID, formatDuration(duration))); err != nil {
		a.config.Log.Warn("Could not write summary", "error", err)
		return
	}
	for _, result := range a.results {
		line := fmt.Sprintf("  %s: %d failing, %d task error(s)",
			result.Package, result.TotalFailing(), len(result.RerunErrors))
		if err := fileLogger.LogSummary(line); err != nil {
			a.config.Log.Warn("Could not write summary", "error", err)
			return
		}
	}
}

// Failed reports whether the most recent workflow run found failing cases
// or hit re-run task errors.
func (a *App) Failed() bool {
	for _, result := range a.results {
		if result.Failed() {
			return true
		}
	}
	return false
}

// TotalFailing returns the failing-case count of the most recent run.
func (a *App) TotalFailing() int {
	n := 0
	for _, result := range a.results {
		n += result.TotalFailing()
	}
	return n
}

// Stop stops the loomrun service.
func (a *App) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping loomrun")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	a.running.Store(false)
	close(a.done)

	a.config.Log.Info("loomrun stopped successfully")
	return nil
}

// Stopped returns true if the loomrun service is stopped.
func (a *App) Stopped() bool {
	return !a.running.Load()
}

// suiteCounter observes the discovery event stream, retaining each suite's
// final counts for the results table while forwarding every event to the
// console reporter.
type suiteCounter struct {
	inner  runner.EventObserver
	totals map[string]types.SuiteCounts
}

var _ runner.EventObserver = (*suiteCounter)(nil)

func newSuiteCounter(inner runner.EventObserver) *suiteCounter {
	return &suiteCounter{inner: inner, totals: make(map[string]types.SuiteCounts)}
}

func (c *suiteCounter) ObserveEvent(suite types.TestSuite, event types.Event, raw string, elapsed time.Duration) {
	switch event.Kind {
	case types.EventSuiteOk, types.EventSuiteFailed:
		c.totals[suite.Name] = event.Counts
	}
	if c.inner != nil {
		c.inner.ObserveEvent(suite, event, raw, elapsed)
	}
}

func (c *suiteCounter) ObserveRecovered(suite types.TestSuite, tests []string) {
	if c.inner != nil {
		c.inner.ObserveRecovered(suite, tests)
	}
}

func (c *suiteCounter) counts(suiteName string) types.SuiteCounts {
	return c.totals[suiteName]
}
