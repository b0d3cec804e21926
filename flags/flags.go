package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "LOOMRUN"

func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   ".",
		EnvVars: prefixEnvVar("WORKDIR"),
		Usage:   "Workspace root containing go.mod and the build output",
	}
	Manifest = &cli.StringFlag{
		Name:    "manifest",
		Value:   "",
		EnvVars: prefixEnvVar("MANIFEST"),
		Usage:   "Path to the suite manifest (defaults to <workdir>/loom.yaml)",
	}
	BinDir = &cli.StringFlag{
		Name:    "bindir",
		Value:   "",
		EnvVars: prefixEnvVar("BINDIR"),
		Usage:   "Directory of compiled test binaries to scan when no manifest exists",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVar("LOGDIR"),
		Usage:   "Directory to store captured diagnostic output",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVar("RUN_INTERVAL"),
		Usage:   "Interval between workflow runs (e.g. '1h'). Set to 0 or omit for run-once mode.",
	}

	// Model-checker options. These env var names are read directly by this
	// process; the values are re-exported to the spawned test binaries under
	// the same names.
	MaxBranches = &cli.IntFlag{
		Name:    "max-branches",
		Value:   1_000,
		EnvVars: []string{"LOOM_MAX_BRANCHES"},
		Usage:   "Maximum number of thread switches per permutation",
	}
	MaxPermutations = &cli.IntFlag{
		Name:    "max-permutations",
		Value:   0,
		EnvVars: []string{"LOOM_MAX_PERMUTATIONS"},
		Usage:   "Maximum number of permutations to explore (0 = unbounded)",
	}
	MaxThreads = &cli.IntFlag{
		Name:    "max-threads",
		Value:   4,
		EnvVars: []string{"LOOM_MAX_THREADS"},
		Usage:   "Max number of threads to check as part of the execution",
	}
	MaxDuration = &cli.DurationFlag{
		Name:    "max-duration",
		Value:   0,
		EnvVars: []string{"LOOM_MAX_DURATION"},
		Usage:   "Maximum duration to run each model for during discovery (0 = no limit)",
	}
	CheckpointInterval = &cli.IntFlag{
		Name:    "checkpoint-interval",
		Value:   5,
		EnvVars: []string{"LOOM_CHECKPOINT_INTERVAL"},
		Usage:   "How often the model checker writes the checkpoint file",
	}
	LoomLog = &cli.StringFlag{
		Name:    "loom-log",
		Value:   "trace",
		EnvVars: []string{"LOOM_LOG"},
		Usage:   "Log filter for the model checker when re-running failed tests",
	}

	Color = &cli.StringFlag{
		Name:    "color",
		Value:   "auto",
		EnvVars: prefixEnvVar("COLOR"),
		Usage:   "When to use colored output: auto, always, or never",
	}
	MessageFormat = &cli.StringFlag{
		Name:    "message-format",
		Value:   "human",
		EnvVars: prefixEnvVar("MESSAGE_FORMAT"),
		Usage:   "Output format for test events: human or json",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Usage:   "Log level for loomrun itself: debug, info, warn, or error",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	WorkDir,
	Manifest,
	BinDir,
	LogDir,
	RunInterval,
	MaxBranches,
	MaxPermutations,
	MaxThreads,
	MaxDuration,
	CheckpointInterval,
	LoomLog,
	Color,
	MessageFormat,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
