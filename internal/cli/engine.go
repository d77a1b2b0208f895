package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ferricite/rustjit/internal/bindspec"
	"github.com/ferricite/rustjit/internal/ffi"
	"github.com/ferricite/rustjit/internal/pipeline"
	"github.com/ferricite/rustjit/internal/registry"
	"github.com/ferricite/rustjit/internal/workspace"
)

// openLedger opens (creating if needed) the build ledger under the
// cache directory.
func openLedger(cacheDir string) (*registry.Registry, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return registry.Open(filepath.Join(cacheDir, "ledger.db"))
}

// newPipeline assembles the build pipeline for a command. A nil binder
// keeps the default library binder.
func newPipeline(opts *RootOptions, ledger *registry.Registry, binder pipeline.Binder) *pipeline.Pipeline {
	pipeOpts := []pipeline.Option{
		pipeline.WithLedger(ledger),
		pipeline.WithLogger(opts.Logger),
	}
	if binder != nil {
		pipeOpts = append(pipeOpts, pipeline.WithBinder(binder))
	}
	return pipeline.New(workspace.NewManager(opts.CacheDir), pipeOpts...)
}

// requestFromSpec converts a validated bind descriptor to a pipeline
// request.
func requestFromSpec(spec *bindspec.Spec) (pipeline.Request, error) {
	sig, err := spec.Signature()
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		Source:    spec.Source,
		Symbol:    spec.Symbol,
		Signature: sig,
		CrateName: spec.Name,
		CargoArgs: spec.CargoArgs,
	}, nil
}

// captureBinder satisfies pipeline.Binder without loading the artifact.
// Used by the build command, which compiles but does not bind.
type captureBinder struct {
	artifactPath string
}

type unboundFunction struct{}

func (unboundFunction) Call(args ...any) (any, error) {
	return nil, fmt.Errorf("artifact was built but not bound")
}

func (b *captureBinder) Bind(artifactPath, symbol string, sig ffi.Signature) (pipeline.Function, error) {
	b.artifactPath = artifactPath
	return unboundFunction{}, nil
}

// failureCode maps a pipeline failure onto a stable response code.
func failureCode(err error) string {
	switch {
	case pipeline.IsToolchainMissing(err):
		return string(pipeline.CodeToolchainMissing)
	case pipeline.IsCompilationFailed(err):
		return string(pipeline.CodeCompilationFailed)
	case pipeline.IsArtifactNotFound(err):
		return string(pipeline.CodeArtifactNotFound)
	case pipeline.IsSymbolNotFound(err):
		return string(pipeline.CodeSymbolNotFound)
	case pipeline.IsUnsupportedInvocation(err):
		return string(pipeline.CodeUnsupportedInvocation)
	default:
		return "ERROR"
	}
}
