// Package toolchain drives the external Rust compiler.
//
// The toolchain is an opaque collaborator: a child process with a
// pass/fail exit status and captured output. Build never returns a Go
// error for a failed compile; classification is purely by exit status
// and presenting the failure is the caller's decision.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CargoBinary is the toolchain entry point looked up on PATH.
const CargoBinary = "cargo"

// Result is the outcome of one toolchain invocation. Immutable after
// creation and never persisted beyond the caller's error message.
type Result struct {
	// Succeeded is true when the process exited zero.
	Succeeded bool

	// ExitCode is the process exit status (-1 if the process could not
	// be started or was killed before exiting).
	ExitCode int

	// Stdout and Stderr hold the full captured output, raw.
	Stdout []byte
	Stderr []byte
}

// Runner invokes the toolchain against a workspace directory.
//
// An interface so tests can substitute a fake that counts invocations
// or plants artifacts without a real compiler.
type Runner interface {
	// Build runs a release-profile build in dir, blocking until the
	// process terminates. extraArgs are appended to the fixed build
	// command.
	Build(ctx context.Context, dir string, extraArgs []string) Result
}

// Locate verifies the cargo binary is discoverable on the search path
// and returns its resolved location.
//
// Called once, eagerly, before any workspace work: a missing toolchain
// is a distinct condition from a failed build.
func Locate() (string, error) {
	path, err := exec.LookPath(CargoBinary)
	if err != nil {
		return "", fmt.Errorf("cargo not found in PATH (install the Rust toolchain): %w", err)
	}
	return path, nil
}

// Version returns the toolchain's self-reported version line, or "" if
// it cannot be determined. Recorded in the build ledger for diagnosis;
// never used for cache decisions.
func Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, CargoBinary, "--version").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// CargoRunner is the production Runner backed by the real cargo binary.
type CargoRunner struct{}

// Build runs `cargo build --release` in dir.
//
// The call is a full blocking wait with no internal timeout; callers
// needing cancellation wrap the context. Stdout and stderr are captured
// whole, not streamed.
func (CargoRunner) Build(ctx context.Context, dir string, extraArgs []string) Result {
	args := append([]string{"build", "--release"}, extraArgs...)
	cmd := exec.CommandContext(ctx, CargoBinary, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Succeeded: err == nil,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	} else {
		// The process never ran (spawn failure). Surface the reason in
		// the captured stream so the caller's diagnostics show it.
		res.ExitCode = -1
		res.Stderr = append(res.Stderr, []byte(err.Error())...)
	}
	return res
}
