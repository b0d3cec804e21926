package binaries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomrun/loomrun/types"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "buffer_tests-8fe1a2"), "#!/bin/sh\n", 0o755)
	writeFile(t, filepath.Join(dir, "ring_buffer-11aa22"), "#!/bin/sh\n", 0o755)
	writeFile(t, filepath.Join(dir, "loom.yaml"), `
packages:
  - name: ring-buffer
    suites:
      - name: ring_buffer
        path: ring_buffer-11aa22
        kind: lib
      - name: buffer_tests
        path: buffer_tests-8fe1a2
`, 0o644)

	m, err := Load(filepath.Join(dir, "loom.yaml"))
	require.NoError(t, err)
	require.Len(t, m.Packages, 1)

	pkg := m.Packages[0]
	assert.Equal(t, "ring-buffer", pkg.Name)
	require.Len(t, pkg.Suites, 2)

	assert.Equal(t, types.SuiteKindLib, pkg.Suites[0].Kind)
	assert.Equal(t, filepath.Join(dir, "ring_buffer-11aa22"), pkg.Suites[0].Path)

	// Kind defaults to integration, package name is attached.
	assert.Equal(t, types.SuiteKindIntegration, pkg.Suites[1].Kind)
	assert.Equal(t, "ring-buffer", pkg.Suites[1].Package)
}

func TestLoadManifestMissingBinaryIsBuildError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "loom.yaml"), `
packages:
  - name: ring-buffer
    suites:
      - name: buffer_tests
        path: buffer_tests-8fe1a2
`, 0o644)

	_, err := Load(filepath.Join(dir, "loom.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `package "ring-buffer"`)
}

func TestLoadManifestRejectsAnonymousPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "loom.yaml"), `
packages:
  - suites:
      - name: buffer_tests
        path: buffer_tests
`, 0o644)

	_, err := Load(filepath.Join(dir, "loom.yaml"))
	require.Error(t, err)
}

func TestDefaultPackageName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "module github.com/acme/ring-buffer\n\ngo 1.26.0\n", 0o644)

	name, err := DefaultPackageName(dir)
	require.NoError(t, err)
	assert.Equal(t, "ring-buffer", name)
}

func TestDiscoverScansExecutables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "buffer_tests-8fe1a2"), "#!/bin/sh\n", 0o755)
	writeFile(t, filepath.Join(dir, "queue_tests-00ff00"), "#!/bin/sh\n", 0o755)
	writeFile(t, filepath.Join(dir, "buffer_tests-8fe1a2.d"), "dep info", 0o644)

	m, err := Discover(dir, "ring-buffer")
	require.NoError(t, err)
	require.Len(t, m.Packages, 1)
	require.Len(t, m.Packages[0].Suites, 2)

	names := []string{m.Packages[0].Suites[0].Name, m.Packages[0].Suites[1].Name}
	assert.ElementsMatch(t, []string{"buffer_tests", "queue_tests"}, names)
}

func TestDiscoverEmptyDirFails(t *testing.T) {
	_, err := Discover(t.TempDir(), "ring-buffer")
	require.Error(t, err)
}

func TestStripBuildSuffix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"buffer_tests-8fe1a2", "buffer_tests"},
		{"buffer_tests", "buffer_tests"},
		{"buffer-tests", "buffer-tests"},
		{"buffer_tests-", "buffer_tests-"},
		{"-8fe1a2", "-8fe1a2"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, stripBuildSuffix(tc.in), tc.in)
	}
}
