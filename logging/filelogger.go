// Package logging persists the diagnostic output captured for each failing
// case, so a run's evidence survives the terminal scrollback.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/loomrun/loomrun/types"
)

const (
	// RunDirectoryPrefix is the standardized prefix for per-run directories.
	RunDirectoryPrefix = "loomrun-"
	SummaryFilename    = "summary.log"
	FailedDirName      = "failed"
)

// FileLogger writes each re-run's captured output to its own file under a
// per-run directory, mirrors spawn failures into a failed/ subdirectory,
// and appends a one-line-per-case summary file.
type FileLogger struct {
	baseDir     string
	runDir      string
	failedDir   string
	summaryFile string
	runID       string
	mu          sync.Mutex
}

// NewFileLogger creates the per-run directory tree under baseDir.
func NewFileLogger(baseDir, runID string) (*FileLogger, error) {
	runDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(runDir, FailedDirName)
	if err := os.MkdirAll(failedDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", failedDir, err)
	}
	return &FileLogger{
		baseDir:     baseDir,
		runDir:      runDir,
		failedDir:   failedDir,
		summaryFile: filepath.Join(runDir, SummaryFilename),
		runID:       runID,
	}, nil
}

// GetRunID returns the run ID this logger was created for.
func (l *FileLogger) GetRunID() string { return l.runID }

// GetRunDir returns the per-run directory.
func (l *FileLogger) GetRunDir() string { return l.runDir }

// GetFailedDir returns the directory holding task-error records.
func (l *FileLogger) GetFailedDir() string { return l.failedDir }

// GetSummaryFile returns the path of the run summary file.
func (l *FileLogger) GetSummaryFile() string { return l.summaryFile }

// LogRerunResult writes one re-run's captured output to
// <runDir>/<suite>__<test>.log, with ANSI escape sequences stripped so the
// files read cleanly outside a terminal. A task error is recorded under
// failed/ instead.
func (l *FileLogger) LogRerunResult(result *types.RerunResult) error {
	if result.Err != nil {
		path := filepath.Join(l.failedDir, safeFilename(result.Name)+".log")
		content := fmt.Sprintf("test: %s\nerror: %v\n", result.Name, result.Err)
		return os.WriteFile(path, []byte(content), 0o644)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "test: %s\nexit code: %d\n\n--- stdout ---\n", result.Name, result.ExitCode)
	b.Write(scrub(result.Stdout))
	if len(result.Stderr) > 0 {
		b.WriteString("\n--- stderr ---\n")
		b.Write(scrub(result.Stderr))
	}

	path := filepath.Join(l.runDir, safeFilename(result.Name)+".log")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing rerun log for %s: %w", result.Name, err)
	}
	return nil
}

// LogSummary appends a line to the run summary file.
func (l *FileLogger) LogSummary(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.summaryFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening summary file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	return nil
}

func scrub(raw []byte) []byte {
	return []byte(stripansi.Strip(string(raw)))
}

// safeFilename replaces characters that might be problematic in filenames.
func safeFilename(s string) string {
	s = strings.ReplaceAll(s, "::", "__")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	s = strings.ReplaceAll(s, "?", "_")
	s = strings.ReplaceAll(s, "\"", "_")
	s = strings.ReplaceAll(s, "<", "_")
	s = strings.ReplaceAll(s, ">", "_")
	s = strings.ReplaceAll(s, "|", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
