package toolchain

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCargo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(CargoBinary); err != nil {
		t.Skip("cargo not installed; skipping toolchain integration test")
	}
}

func TestLocate_MissingToolchain(t *testing.T) {
	// An empty PATH guarantees the lookup fails regardless of the host.
	t.Setenv("PATH", "")

	_, err := Locate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cargo not found")
}

func TestLocate_FindsCargo(t *testing.T) {
	requireCargo(t)

	path, err := Locate()
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestBuild_SpawnFailureIsClassifiedNotRaised(t *testing.T) {
	t.Setenv("PATH", "")

	res := CargoRunner{}.Build(context.Background(), t.TempDir(), nil)

	assert.False(t, res.Succeeded)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
}

func TestBuild_FailedCompileCapturesStderr(t *testing.T) {
	requireCargo(t)

	// A workspace with a manifest but no source: cargo exits non-zero
	// and explains itself on stderr.
	dir := t.TempDir()
	res := CargoRunner{}.Build(context.Background(), dir, nil)

	assert.False(t, res.Succeeded)
	assert.NotZero(t, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
}

func TestVersion_BestEffort(t *testing.T) {
	requireCargo(t)

	v := Version(context.Background())
	assert.Contains(t, v, "cargo")
}
