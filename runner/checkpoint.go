package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckpointStore computes checkpoint paths under a fixed root and performs
// the two filesystem operations the workflow needs: directory creation and
// a well-formedness-aware existence check. It keeps no state beyond the
// root path; the failure ledger owns everything else.
//
// Layout: <root>/<binary-file-name>/<test>.json. The binary file name
// embeds the build hash, so checkpoints from a previous invocation remain
// valid for an unchanged binary and are keyed away from stale ones.
type CheckpointStore struct {
	root string
}

// NewCheckpointStore creates the store and its root directory. Failure to
// create the root is fatal for the whole invocation: no results can be
// persisted without it.
func NewCheckpointStore(root string) (*CheckpointStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory %q: %w", root, err)
	}
	return &CheckpointStore{root: root}, nil
}

// Root returns the checkpoint root directory.
func (s *CheckpointStore) Root() string { return s.root }

// SuiteDir returns the content-addressed checkpoint directory for a binary
// file name. Deterministic: identical inputs always yield identical paths.
func (s *CheckpointStore) SuiteDir(binaryName string) string {
	return filepath.Join(s.root, binaryName)
}

// CasePath returns the checkpoint file path for one test inside a suite
// directory. Distinct (dir, test) pairs never collide.
func (s *CheckpointStore) CasePath(suiteDir, testName string) string {
	return filepath.Join(suiteDir, testName+".json")
}

// EnsureDir creates dir and any missing ancestors.
func (s *CheckpointStore) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory %q: %w", dir, err)
	}
	return nil
}

// DirExists reports whether a suite checkpoint directory is already present
// from a prior invocation.
func (s *CheckpointStore) DirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// CheckpointExists reports whether a well-formed checkpoint file exists at
// path. A half-written file (interrupted run) fails the JSON check and is
// treated as not yet generated.
func (s *CheckpointStore) CheckpointExists(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Valid(data)
}

// ListCheckpointed returns the test names with a well-formed checkpoint file
// in dir, in directory order. Non-JSON entries and malformed files are
// skipped.
func (s *CheckpointStore) ListCheckpointed(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint directory %q: %w", dir, err)
	}
	var tests []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		test := strings.TrimSuffix(name, ".json")
		if !s.CheckpointExists(filepath.Join(dir, name)) {
			continue
		}
		tests = append(tests, test)
	}
	return tests, nil
}
