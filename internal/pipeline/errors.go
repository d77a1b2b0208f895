package pipeline

import (
	"errors"
	"fmt"
)

// Code categorizes the fatal conditions of a bind request.
type Code string

const (
	// CodeToolchainMissing indicates cargo is not on the search path.
	// Reported before any workspace I/O.
	CodeToolchainMissing Code = "TOOLCHAIN_MISSING"

	// CodeCompilationFailed indicates the toolchain exited non-zero.
	// The captured output is attached verbatim.
	CodeCompilationFailed Code = "COMPILATION_FAILED"

	// CodeArtifactNotFound indicates a successful build produced no
	// matching library anywhere in the search tree.
	CodeArtifactNotFound Code = "ARTIFACT_NOT_FOUND"

	// CodeSymbolNotFound indicates the artifact loaded but the
	// requested export is absent.
	CodeSymbolNotFound Code = "SYMBOL_NOT_FOUND"

	// CodeUnsupportedInvocation indicates a request shape the binding
	// layer cannot express (bad signature, non-positional call).
	CodeUnsupportedInvocation Code = "UNSUPPORTED_INVOCATION"
)

// Error is a fatal bind-request failure.
//
// Every fatal condition aborts the request entirely and carries enough
// context to diagnose without re-running: captured compiler output,
// searched paths, the symbol name. Nothing is retried automatically and
// there is no partial success.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// CrateName identifies the affected compilation unit, when known.
	CrateName string

	// Stdout and Stderr hold the toolchain output verbatim (set for
	// CodeCompilationFailed).
	Stdout []byte
	Stderr []byte

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.CrateName != "" {
		msg += fmt.Sprintf(" (crate=%s)", e.CrateName)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Stderr) > 0 {
		msg += "\nstderr:\n" + string(e.Stderr)
	}
	if len(e.Stdout) > 0 {
		msg += "\nstdout:\n" + string(e.Stdout)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// codeOf extracts the failure code from an error chain, or "".
func codeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsToolchainMissing reports whether err is a missing-toolchain failure.
func IsToolchainMissing(err error) bool { return codeOf(err) == CodeToolchainMissing }

// IsCompilationFailed reports whether err is a failed compile.
func IsCompilationFailed(err error) bool { return codeOf(err) == CodeCompilationFailed }

// IsArtifactNotFound reports whether err is a missing build artifact.
func IsArtifactNotFound(err error) bool { return codeOf(err) == CodeArtifactNotFound }

// IsSymbolNotFound reports whether err is a missing exported symbol.
func IsSymbolNotFound(err error) bool { return codeOf(err) == CodeSymbolNotFound }

// IsUnsupportedInvocation reports whether err is an unsupported request
// or call shape.
func IsUnsupportedInvocation(err error) bool { return codeOf(err) == CodeUnsupportedInvocation }
