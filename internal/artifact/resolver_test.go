package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferricite/rustjit/internal/platform"
	"github.com/ferricite/rustjit/internal/workspace"
)

func writeLib(t *testing.T, dir string, rel ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{dir}, rel...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte{0x7f, 'E', 'L', 'F'}, 0o755))
	return path
}

func TestResolve_PrimaryLocation(t *testing.T) {
	dir := t.TempDir()
	libName := platform.HostLibraryName("adder")
	want := writeLib(t, dir, "target", "release", libName)

	got, err := Resolve(dir, "adder")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_NestedFallback(t *testing.T) {
	dir := t.TempDir()
	libName := platform.HostLibraryName("adder")

	// Output nested one level under the release directory, as some
	// target layouts produce.
	want := writeLib(t, dir, "target", "release", "deps", libName)

	got, err := Resolve(dir, "adder")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_MissingArtifactReportsSearchedPaths(t *testing.T) {
	dir := t.TempDir()
	release := filepath.Join(dir, filepath.FromSlash(workspace.ReleaseDir))
	require.NoError(t, os.MkdirAll(release, 0o755))

	_, err := Resolve(dir, "adder")
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, platform.HostLibraryName("adder"), nf.LibName)
	assert.Contains(t, err.Error(), release)
}

func TestResolve_MissingReleaseTree(t *testing.T) {
	_, err := Resolve(t.TempDir(), "adder")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResolve_IgnoresOtherLibraries(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "target", "release", platform.HostLibraryName("other"))

	_, err := Resolve(dir, "adder")
	assert.Error(t, err)
}
