package runner

import (
	"strconv"
	"time"
)

// Environment variable names forming the wire contract with the spawned test
// binaries. The model checker inside each binary reads these directly, so
// the names must match it exactly.
const (
	EnvMaxBranches        = "LOOM_MAX_BRANCHES"
	EnvMaxPermutations    = "LOOM_MAX_PERMUTATIONS"
	EnvMaxThreads         = "LOOM_MAX_THREADS"
	EnvMaxDuration        = "LOOM_MAX_DURATION"
	EnvCheckpointInterval = "LOOM_CHECKPOINT_INTERVAL"
	EnvCheckpointFile     = "LOOM_CHECKPOINT_FILE"
	EnvLoomLog            = "LOOM_LOG"
	EnvLoomLocation       = "LOOM_LOCATION"
)

// LoomConfig holds the model-checker parameters forwarded to every spawned
// test binary. The zero value of an optional field means "unset": the
// corresponding environment variable is omitted and the model checker uses
// its own default.
type LoomConfig struct {
	MaxBranches        int
	MaxPermutations    int // optional; 0 = unbounded
	MaxThreads         int
	MaxDuration        time.Duration // optional; 0 = no limit
	CheckpointInterval int
	Log                string // log filter for diagnostic re-runs
}

// baseEnv returns the environment entries shared by every run mode.
func (c LoomConfig) baseEnv() []string {
	env := []string{
		EnvMaxBranches + "=" + strconv.Itoa(c.MaxBranches),
		EnvMaxThreads + "=" + strconv.Itoa(c.MaxThreads),
	}
	if c.MaxPermutations > 0 {
		env = append(env, EnvMaxPermutations+"="+strconv.Itoa(c.MaxPermutations))
	}
	return env
}

// DiscoveryEnv configures a diagnostics-off discovery pass: logging off, no
// checkpoint file, no location capture. The per-case duration cap applies
// only here; re-runs with logging enabled may legitimately be slower.
func (c LoomConfig) DiscoveryEnv() []string {
	env := append(c.baseEnv(), EnvLoomLog+"=off")
	if c.MaxDuration > 0 {
		secs := int(c.MaxDuration / time.Second)
		env = append(env, EnvMaxDuration+"="+strconv.Itoa(secs))
	}
	return env
}

// CheckpointEnv configures a checkpoint-generation run: diagnostics stay
// off, but the model checker persists exploration progress to file every
// CheckpointInterval iterations.
func (c LoomConfig) CheckpointEnv(checkpointFile string) []string {
	return append(c.baseEnv(),
		EnvLoomLog+"=off",
		EnvCheckpointInterval+"="+strconv.Itoa(c.CheckpointInterval),
		EnvCheckpointFile+"="+checkpointFile,
	)
}

// DiagnosticEnv configures the final re-run: the model checker resumes from
// the checkpoint file with the configured log filter and source-location
// capture enabled.
func (c LoomConfig) DiagnosticEnv(checkpointFile string) []string {
	return append(c.baseEnv(),
		EnvCheckpointInterval+"="+strconv.Itoa(c.CheckpointInterval),
		EnvCheckpointFile+"="+checkpointFile,
		EnvLoomLog+"="+c.Log,
		EnvLoomLocation+"=1",
	)
}
