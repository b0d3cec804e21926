package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomrun/loomrun/types"
)

func TestNewFileLoggerCreatesRunDirectories(t *testing.T) {
	base := t.TempDir()
	logger, err := NewFileLogger(base, "run-123")
	require.NoError(t, err)

	assert.Equal(t, "run-123", logger.GetRunID())
	assert.Equal(t, filepath.Join(base, "loomrun-run-123"), logger.GetRunDir())
	assert.DirExists(t, logger.GetRunDir())
	assert.DirExists(t, logger.GetFailedDir())
}

func TestLogRerunResultWritesOutputSections(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-123")
	require.NoError(t, err)

	result := &types.RerunResult{
		Name:     "buffer_tests::drop_full",
		Stdout:   []byte("\x1b[31mexploration depth 4\x1b[0m\n"),
		Stderr:   []byte("thread panicked\n"),
		ExitCode: 101,
	}
	require.NoError(t, logger.LogRerunResult(result))

	data, err := os.ReadFile(filepath.Join(logger.GetRunDir(), "buffer_tests__drop_full.log"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "exit code: 101")
	assert.Contains(t, content, "--- stdout ---")
	assert.Contains(t, content, "exploration depth 4")
	assert.Contains(t, content, "--- stderr ---")
	assert.Contains(t, content, "thread panicked")
	assert.NotContains(t, content, "\x1b[31m", "ANSI escapes must be stripped")
}

func TestLogRerunResultTaskErrorGoesToFailedDir(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-123")
	require.NoError(t, err)

	result := &types.RerunResult{
		Name: "queue_tests::pop_empty",
		Err:  errors.New("spawn process to checkpoint queue_tests::pop_empty: no such file"),
	}
	require.NoError(t, logger.LogRerunResult(result))

	data, err := os.ReadFile(filepath.Join(logger.GetFailedDir(), "queue_tests__pop_empty.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "no such file")
}

func TestLogSummaryAppends(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-123")
	require.NoError(t, err)

	require.NoError(t, logger.LogSummary("first"))
	require.NoError(t, logger.LogSummary("second"))

	data, err := os.ReadFile(logger.GetSummaryFile())
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "buffer_tests__drop_full", safeFilename("buffer_tests::drop_full"))
	assert.Equal(t, "a_b_c", safeFilename("a/b c"))
}
