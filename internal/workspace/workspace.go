// Package workspace owns the on-disk build directories of the
// compilation cache.
//
// One workspace exists per crate name. A workspace is FRESH when the
// cached source matches the requested source byte-for-byte and the
// expected artifact exists; anything else (absent directory, differing
// source, missing artifact, partially written layout) is STALE and is
// rebuilt in place. At most one workspace per crate name exists at a
// time; a request with the same name and different source supersedes
// the cached one.
//
// The cache is disk-resident: workspaces persist across process runs
// until externally cleared.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ferricite/rustjit/internal/platform"
)

// Layout constants within a workspace directory.
const (
	ManifestFile = "Cargo.toml"
	SourceFile   = "src/lib.rs"
	ReleaseDir   = "target/release"
)

// Plan is the outcome of a cache check for one crate.
type Plan struct {
	// CrateName identifies the compilation unit.
	CrateName string

	// Dir is the workspace directory (exists after Prepare).
	Dir string

	// ArtifactPath is the conventional release-output location of the
	// dynamic library. On a reuse it is known to exist; on a rebuild it
	// is where the artifact is expected to land.
	ArtifactPath string

	// Reuse is true when the cached artifact may be used without
	// invoking the toolchain.
	Reuse bool
}

// Manager materializes compilation units under a single cache root.
//
// The root is passed explicitly; there is no process-global directory
// table. Side effects are filesystem writes only.
type Manager struct {
	// Root is the directory holding all workspaces.
	Root string
}

// NewManager returns a Manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{Root: dir}
}

// Dir returns the workspace directory for a crate name.
func (m *Manager) Dir(crateName string) string {
	return filepath.Join(m.Root, crateName)
}

// Prepare decides REBUILD vs REUSE for the crate and, when rebuilding,
// writes the manifest and source into place.
//
// On reuse the returned plan points at the previously built artifact and
// no files are touched. On rebuild the workspace directory is created
// idempotently (including parents), Cargo.toml and src/lib.rs are
// rewritten, and the caller must run the toolchain before resolving the
// artifact. A corrupted workspace (directory present, expected subpaths
// missing) is treated as stale, not as an error.
func (m *Manager) Prepare(crateName, sourceText string) (Plan, error) {
	dir := m.Dir(crateName)
	plan := Plan{
		CrateName:    crateName,
		Dir:          dir,
		ArtifactPath: filepath.Join(dir, filepath.FromSlash(ReleaseDir), platform.HostLibraryName(crateName)),
	}

	if m.isFresh(dir, sourceText, plan.ArtifactPath) {
		plan.Reuse = true
		return plan, nil
	}

	if err := m.materialize(dir, crateName, sourceText); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// isFresh reports whether the cached source matches and the expected
// artifact exists.
func (m *Manager) isFresh(dir, sourceText, artifactPath string) bool {
	cached, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(SourceFile)))
	if err != nil {
		// Absent or unreadable source means stale, including the
		// corrupted-workspace case where only src/ went missing.
		return false
	}
	if string(cached) != sourceText {
		return false
	}
	if _, err := os.Stat(artifactPath); err != nil {
		return false
	}
	return true
}

// materialize writes the manifest and source, creating the directory
// structure as needed. Re-creates any missing pieces of a corrupted
// workspace.
func (m *Manager) materialize(dir, crateName, sourceText string) error {
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", dir, err)
	}
	manifest := RenderManifest(crateName)
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(SourceFile)), []byte(sourceText), 0o644); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	return nil
}

// Remove deletes the workspace for a crate name.
//
// Removing a workspace that does not exist is not an error.
func (m *Manager) Remove(crateName string) error {
	if err := os.RemoveAll(m.Dir(crateName)); err != nil {
		return fmt.Errorf("remove workspace %s: %w", crateName, err)
	}
	return nil
}

// List returns the crate names that currently have a workspace under
// the root, sorted lexically. A missing root is an empty cache.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache root %s: %w", m.Root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
