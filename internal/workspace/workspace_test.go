package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferricite/rustjit/internal/platform"
)

const testSource = `#[no_mangle]
pub extern "C" fn add_i32(a: i32, b: i32) -> i32 { a + b }
`

// plantArtifact creates a fake dynamic library at the conventional
// release-output path so later cache checks see a FRESH workspace.
func plantArtifact(t *testing.T, dir, crateName string) string {
	t.Helper()
	release := filepath.Join(dir, filepath.FromSlash(ReleaseDir))
	require.NoError(t, os.MkdirAll(release, 0o755))
	path := filepath.Join(release, platform.HostLibraryName(crateName))
	require.NoError(t, os.WriteFile(path, []byte("not a real library"), 0o644))
	return path
}

func TestPrepare_FirstRequestIsRebuild(t *testing.T) {
	m := NewManager(t.TempDir())

	plan, err := m.Prepare("adder", testSource)
	require.NoError(t, err)

	assert.False(t, plan.Reuse)
	assert.Equal(t, m.Dir("adder"), plan.Dir)

	// The compilation unit is materialized on disk.
	src, err := os.ReadFile(filepath.Join(plan.Dir, filepath.FromSlash(SourceFile)))
	require.NoError(t, err)
	assert.Equal(t, testSource, string(src))

	manifest, err := os.ReadFile(filepath.Join(plan.Dir, ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `crate-type = ["cdylib"]`)
	assert.Contains(t, string(manifest), `name = "adder"`)
}

func TestPrepare_MatchingSourceAndArtifactIsReuse(t *testing.T) {
	m := NewManager(t.TempDir())

	plan, err := m.Prepare("adder", testSource)
	require.NoError(t, err)
	require.False(t, plan.Reuse)

	planted := plantArtifact(t, plan.Dir, "adder")

	again, err := m.Prepare("adder", testSource)
	require.NoError(t, err)
	assert.True(t, again.Reuse)
	assert.Equal(t, planted, again.ArtifactPath)
}

func TestPrepare_ChangedSourceSupersedesCache(t *testing.T) {
	m := NewManager(t.TempDir())

	plan, err := m.Prepare("adder", testSource)
	require.NoError(t, err)
	plantArtifact(t, plan.Dir, "adder")

	changed := testSource + "\n// changed\n"
	again, err := m.Prepare("adder", changed)
	require.NoError(t, err)

	assert.False(t, again.Reuse)

	// The cached source was overwritten, not left stale.
	src, err := os.ReadFile(filepath.Join(again.Dir, filepath.FromSlash(SourceFile)))
	require.NoError(t, err)
	assert.Equal(t, changed, string(src))
}

func TestPrepare_MissingArtifactIsStale(t *testing.T) {
	m := NewManager(t.TempDir())

	_, err := m.Prepare("adder", testSource)
	require.NoError(t, err)

	// Same source, but no artifact was ever produced.
	again, err := m.Prepare("adder", testSource)
	require.NoError(t, err)
	assert.False(t, again.Reuse)
}

func TestPrepare_CorruptedWorkspaceIsRecreated(t *testing.T) {
	m := NewManager(t.TempDir())

	plan, err := m.Prepare("adder", testSource)
	require.NoError(t, err)

	// Simulate an interrupted build: the source subtree vanished but the
	// directory remains.
	require.NoError(t, os.RemoveAll(filepath.Join(plan.Dir, "src")))

	again, err := m.Prepare("adder", testSource)
	require.NoError(t, err)
	assert.False(t, again.Reuse)

	_, err = os.Stat(filepath.Join(again.Dir, filepath.FromSlash(SourceFile)))
	assert.NoError(t, err)
}

func TestRemove_Idempotent(t *testing.T) {
	m := NewManager(t.TempDir())

	_, err := m.Prepare("adder", testSource)
	require.NoError(t, err)

	require.NoError(t, m.Remove("adder"))
	require.NoError(t, m.Remove("adder"))

	names, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestList_MissingRootIsEmpty(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "never-created"))

	names, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRenderManifest_Golden(t *testing.T) {
	g := goldie.New(t)
	g.Assert(t, "cargo_manifest", []byte(RenderManifest("rustjit_4bf1817cf1b7")))
}
