// Package testutil provides fakes for exercising the build pipeline
// without a Rust toolchain installed.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/ferricite/rustjit/internal/platform"
	"github.com/ferricite/rustjit/internal/toolchain"
	"github.com/ferricite/rustjit/internal/workspace"
)

// FakeToolchain is a toolchain.Runner that counts invocations and
// plants artifacts instead of compiling.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeToolchain struct {
	mu          sync.Mutex
	invocations int

	// FailStderr, when non-empty, makes every build fail with this
	// content on stderr (simulating a compile error).
	FailStderr string

	// ArtifactBody is written to the conventional release-output path
	// on success. The crate name is taken from the workspace directory
	// basename.
	ArtifactBody []byte
}

// NewFakeToolchain returns a runner whose builds succeed and plant a
// placeholder artifact.
func NewFakeToolchain() *FakeToolchain {
	return &FakeToolchain{ArtifactBody: []byte("fake cdylib")}
}

// Build records the invocation and plants or fails per configuration.
func (f *FakeToolchain) Build(ctx context.Context, dir string, extraArgs []string) toolchain.Result {
	f.mu.Lock()
	f.invocations++
	fail := f.FailStderr
	body := f.ArtifactBody
	f.mu.Unlock()

	if fail != "" {
		return toolchain.Result{Succeeded: false, ExitCode: 101, Stderr: []byte(fail)}
	}

	crate := filepath.Base(dir)
	release := filepath.Join(dir, filepath.FromSlash(workspace.ReleaseDir))
	if err := os.MkdirAll(release, 0o755); err != nil {
		return toolchain.Result{Succeeded: false, ExitCode: -1, Stderr: []byte(err.Error())}
	}
	path := filepath.Join(release, platform.HostLibraryName(crate))
	if err := os.WriteFile(path, body, 0o755); err != nil {
		return toolchain.Result{Succeeded: false, ExitCode: -1, Stderr: []byte(err.Error())}
	}
	return toolchain.Result{Succeeded: true, ExitCode: 0, Stdout: []byte("Compiling " + crate + "\n")}
}

// Invocations returns how many times Build was called.
func (f *FakeToolchain) Invocations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invocations
}

// SilentToolchain succeeds without writing any artifact, simulating a
// toolchain that reports success but produces nothing findable.
type SilentToolchain struct{}

// Build reports success and writes nothing.
func (SilentToolchain) Build(ctx context.Context, dir string, extraArgs []string) toolchain.Result {
	return toolchain.Result{Succeeded: true, ExitCode: 0}
}
