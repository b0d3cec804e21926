package loomrun

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/loomrun/loomrun/flags"
	"github.com/loomrun/loomrun/runner"
)

// Config holds the application configuration
type Config struct {
	WorkDir       string // Workspace root
	ManifestPath  string // Suite manifest; empty when scanning BinDir instead
	BinDir        string // Fallback directory of test binaries
	TargetDir     string // <workdir>/target/loom
	CheckpointDir string // <targetdir>/checkpoint
	LogDir        string // Directory to store captured diagnostic output

	RunInterval time.Duration // Interval between workflow runs
	RunOnce     bool          // Indicates if the service should exit after one run

	Loom     runner.LoomConfig // Model-checker parameters for spawned binaries
	Filter   string            // Optional test-name substring filter
	TestArgs []string          // Extra arguments forwarded to the test binaries

	Render RenderConfig
	Log    log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	workDir, err := filepath.Abs(ctx.String(flags.WorkDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for workdir: %w", err)
	}

	manifestPath := ctx.String(flags.Manifest.Name)
	binDir := ctx.String(flags.BinDir.Name)
	if manifestPath == "" {
		candidate := filepath.Join(workDir, "loom.yaml")
		if _, err := os.Stat(candidate); err == nil {
			manifestPath = candidate
		} else if binDir == "" {
			return nil, fmt.Errorf("no suite manifest at %q and no --bindir given", candidate)
		}
	}

	logDir, err := filepath.Abs(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}

	color, err := ParseColorMode(ctx.String(flags.Color.Name))
	if err != nil {
		return nil, err
	}
	format, err := ParseMessageFormat(ctx.String(flags.MessageFormat.Name))
	if err != nil {
		return nil, err
	}

	maxThreads := ctx.Int(flags.MaxThreads.Name)
	if maxThreads < 1 {
		return nil, fmt.Errorf("max-threads must be at least 1, got %d", maxThreads)
	}
	checkpointInterval := ctx.Int(flags.CheckpointInterval.Name)
	if checkpointInterval < 1 {
		return nil, fmt.Errorf("checkpoint-interval must be at least 1, got %d", checkpointInterval)
	}

	// The first positional argument is the test-name filter; anything after
	// it is forwarded to the test binaries untouched.
	var filter string
	var testArgs []string
	if args := ctx.Args().Slice(); len(args) > 0 {
		filter = args[0]
		testArgs = args[1:]
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	targetDir := filepath.Join(workDir, "target", "loom")

	return &Config{
		WorkDir:       workDir,
		ManifestPath:  manifestPath,
		BinDir:        binDir,
		TargetDir:     targetDir,
		CheckpointDir: filepath.Join(targetDir, "checkpoint"),
		LogDir:        logDir,
		RunInterval:   runInterval,
		RunOnce:       runInterval == 0,
		Loom: runner.LoomConfig{
			MaxBranches:        ctx.Int(flags.MaxBranches.Name),
			MaxPermutations:    ctx.Int(flags.MaxPermutations.Name),
			MaxThreads:         maxThreads,
			MaxDuration:        ctx.Duration(flags.MaxDuration.Name),
			CheckpointInterval: checkpointInterval,
			Log:                ctx.String(flags.LoomLog.Name),
		},
		Filter:   filter,
		TestArgs: testArgs,
		Render:   RenderConfig{Color: color, Format: format},
		Log:      logger,
	}, nil
}
