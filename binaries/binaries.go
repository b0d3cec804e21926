// Package binaries discovers the compiled model-checking test binaries the
// workflow will run. Suites are declared in a manifest (loom.yaml) produced
// by the build step; when a package name is omitted it is derived from the
// workspace go.mod.
package binaries

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/loomrun/loomrun/types"
)

// DefaultManifestName is the manifest file looked up in the workspace root
// when no explicit path is given.
const DefaultManifestName = "loom.yaml"

// Package groups the test suites built from one source package.
type Package struct {
	Name   string            `yaml:"name"`
	Suites []types.TestSuite `yaml:"suites"`
}

// Manifest lists every package and test binary the build step produced.
type Manifest struct {
	Packages []Package `yaml:"packages"`
}

// Load reads and validates a suite manifest. Suite paths are resolved
// relative to the manifest's directory, and each binary must exist: a
// missing binary is a build error for its package, surfaced with the
// package name attached.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite manifest %q: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing suite manifest %q: %w", path, err)
	}
	if len(m.Packages) == 0 {
		return nil, fmt.Errorf("suite manifest %q lists no packages", path)
	}

	baseDir := filepath.Dir(path)
	for pi := range m.Packages {
		pkg := &m.Packages[pi]
		if pkg.Name == "" {
			return nil, fmt.Errorf("suite manifest %q: package %d has no name", path, pi)
		}
		for si := range pkg.Suites {
			suite := &pkg.Suites[si]
			if suite.Name == "" {
				return nil, fmt.Errorf("package %q: suite %d has no name", pkg.Name, si)
			}
			if suite.Kind == "" {
				suite.Kind = types.SuiteKindIntegration
			}
			if !filepath.IsAbs(suite.Path) {
				suite.Path = filepath.Join(baseDir, suite.Path)
			}
			if _, err := os.Stat(suite.Path); err != nil {
				return nil, fmt.Errorf("package %q: test binary for suite %q: %w", pkg.Name, suite.Name, err)
			}
			suite.Package = pkg.Name
		}
	}

	return &m, nil
}

// DefaultPackageName derives a package name from the workspace go.mod: the
// final element of the module path.
func DefaultPackageName(workDir string) (string, error) {
	goModPath := filepath.Join(workDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}

	moduleName := modFile.Module.Mod.Path
	if moduleName == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}

	if i := strings.LastIndex(moduleName, "/"); i >= 0 {
		return moduleName[i+1:], nil
	}
	return moduleName, nil
}

// Discover builds a single-package manifest by scanning dir for executable
// files, for workspaces without a manifest. The suite name is the binary
// file name with any trailing -<hash> build suffix stripped.
func Discover(dir, packageName string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading binary directory %q: %w", dir, err)
	}

	var suites []types.TestSuite
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("reading binary directory %q: %w", dir, err)
		}
		if info.Mode()&0o111 == 0 {
			continue
		}
		suites = append(suites, types.TestSuite{
			Name:    stripBuildSuffix(entry.Name()),
			Path:    filepath.Join(dir, entry.Name()),
			Kind:    types.SuiteKindIntegration,
			Package: packageName,
		})
	}
	if len(suites) == 0 {
		return nil, fmt.Errorf("no test binaries found in %q", dir)
	}

	return &Manifest{Packages: []Package{{Name: packageName, Suites: suites}}}, nil
}

// stripBuildSuffix removes a trailing -<hex> build-hash suffix from a binary
// file name, e.g. "mysuite-8f3a2c1d" -> "mysuite".
func stripBuildSuffix(name string) string {
	i := strings.LastIndex(name, "-")
	if i <= 0 || i == len(name)-1 {
		return name
	}
	for _, r := range name[i+1:] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return name
		}
	}
	return name[:i]
}
