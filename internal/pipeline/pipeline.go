// Package pipeline orchestrates one bind request end to end: cache
// check, toolchain invocation, artifact resolution, symbol binding.
//
// The flow is single-threaded and blocking; the dominant latency is the
// compiler subprocess, which is waited on with no internal timeout.
// Callers wanting cancellation pass a context. The workspace root and
// every collaborator are wired explicitly; there is no process-global
// state beyond the per-crate mutexes that serialize same-name requests
// within this process. Cross-process coordination is out of scope.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ferricite/rustjit/internal/artifact"
	"github.com/ferricite/rustjit/internal/ffi"
	"github.com/ferricite/rustjit/internal/fingerprint"
	"github.com/ferricite/rustjit/internal/registry"
	"github.com/ferricite/rustjit/internal/toolchain"
	"github.com/ferricite/rustjit/internal/workspace"
)

// Request describes one source unit and the symbol to bind from it.
type Request struct {
	// Source is the complete Rust source text, including the exported
	// #[no_mangle] pub extern "C" function.
	Source string

	// Symbol is the exported function name to bind.
	Symbol string

	// Signature declares the argument and return types. Trusted, not
	// verified against the artifact.
	Signature ffi.Signature

	// CrateName optionally pins the cache entry's identity. Empty
	// means derive it from the source digest.
	CrateName string

	// CargoArgs are extra flags appended to the build command.
	CargoArgs []string
}

// Function is an invokable handle over a bound exported symbol.
type Function interface {
	// Call invokes the symbol with positional arguments in declared
	// order.
	Call(args ...any) (any, error)
}

// Binder loads an artifact and binds one symbol. An interface so tests
// can bind without loading native code.
type Binder interface {
	Bind(artifactPath, symbol string, sig ffi.Signature) (Function, error)
}

// LibraryBinder is the production Binder backed by the platform loader.
type LibraryBinder struct{}

// Bind loads the artifact and resolves the symbol. Loaded libraries
// stay mapped for the life of the process.
func (LibraryBinder) Bind(artifactPath, symbol string, sig ffi.Signature) (Function, error) {
	lib, err := ffi.Open(artifactPath)
	if err != nil {
		return nil, err
	}
	return lib.Bind(symbol, sig)
}

// Pipeline wires the cache's collaborators together.
type Pipeline struct {
	workspaces *workspace.Manager
	runner     toolchain.Runner
	binder     Binder
	ledger     *registry.Registry
	logger     *log.Logger

	// locate is the toolchain presence probe, replaceable in tests.
	locate func() (string, error)

	// version reports the toolchain version for the ledger.
	version func(context.Context) string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunner substitutes the toolchain runner.
func WithRunner(r toolchain.Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithBinder substitutes the symbol binder.
func WithBinder(b Binder) Option {
	return func(p *Pipeline) { p.binder = b }
}

// WithLedger attaches a build ledger. Without one, builds are simply
// not recorded.
func WithLedger(r *registry.Registry) Option {
	return func(p *Pipeline) { p.ledger = r }
}

// WithLogger substitutes the structured logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithLocator substitutes the toolchain presence probe.
func WithLocator(f func() (string, error)) Option {
	return func(p *Pipeline) { p.locate = f }
}

// New returns a Pipeline building under the given workspace manager.
func New(ws *workspace.Manager, opts ...Option) *Pipeline {
	p := &Pipeline{
		workspaces: ws,
		runner:     toolchain.CargoRunner{},
		binder:     LibraryBinder{},
		logger:     log.Default(),
		locate:     toolchain.Locate,
		version:    toolchain.Version,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bind executes the full request: fingerprint, cache check, build if
// stale, artifact resolution, symbol bind.
//
// Binding the same request twice invokes the compiler exactly once; a
// changed source for the same crate name forces exactly one rebuild.
func (p *Pipeline) Bind(ctx context.Context, req Request) (Function, error) {
	if req.Symbol == "" {
		return nil, &Error{
			Code:    CodeUnsupportedInvocation,
			Message: "no exported symbol name given",
		}
	}
	if err := req.Signature.Validate(); err != nil {
		return nil, &Error{
			Code:    CodeUnsupportedInvocation,
			Message: "invalid signature",
			Err:     err,
		}
	}

	// Toolchain presence is checked eagerly, before any workspace I/O:
	// a missing compiler must not leave a half-materialized cache entry.
	if _, err := p.locate(); err != nil {
		return nil, &Error{
			Code:    CodeToolchainMissing,
			Message: "external toolchain not found",
			Err:     err,
		}
	}

	crate := req.CrateName
	if crate == "" {
		crate = fingerprint.CrateName(req.Source)
	}
	logger := p.logger.With("crate", crate, "symbol", req.Symbol)

	// Same-name requests are serialized within this process so two
	// callers cannot race on one workspace. Cross-process races remain
	// the caller's problem.
	lock := p.lockFor(crate)
	lock.Lock()
	defer lock.Unlock()

	plan, err := p.workspaces.Prepare(crate, req.Source)
	if err != nil {
		return nil, fmt.Errorf("prepare workspace: %w", err)
	}

	if plan.Reuse {
		logger.Debug("cache hit, reusing artifact", "artifact", plan.ArtifactPath)
		p.touchLedger(ctx, crate)
	} else {
		logger.Info("cache stale, building", "dir", plan.Dir)
		start := time.Now()
		res := p.runner.Build(ctx, plan.Dir, req.CargoArgs)
		if !res.Succeeded {
			return nil, &Error{
				Code:      CodeCompilationFailed,
				Message:   fmt.Sprintf("toolchain exited with status %d", res.ExitCode),
				CrateName: crate,
				Stdout:    res.Stdout,
				Stderr:    res.Stderr,
			}
		}
		logger.Info("build succeeded", "elapsed", time.Since(start))
		p.recordLedger(ctx, crate, req.Source, plan.ArtifactPath, res)
	}

	path, err := artifact.Resolve(plan.Dir, crate)
	if err != nil {
		return nil, &Error{
			Code:      CodeArtifactNotFound,
			Message:   "build produced no matching library",
			CrateName: crate,
			Err:       err,
		}
	}

	fn, err := p.binder.Bind(path, req.Symbol, req.Signature)
	if err != nil {
		if errors.Is(err, ffi.ErrSymbolNotFound) {
			return nil, &Error{
				Code:      CodeSymbolNotFound,
				Message:   "exported symbol not found in artifact",
				CrateName: crate,
				Err:       err,
			}
		}
		return nil, fmt.Errorf("bind %s from %s: %w", req.Symbol, path, err)
	}

	logger.Debug("symbol bound", "artifact", path)
	return fn, nil
}

func (p *Pipeline) lockFor(crate string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[crate]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[crate] = lock
	}
	return lock
}

// The ledger is observability only: failures to record are logged and
// never fail the request.
func (p *Pipeline) recordLedger(ctx context.Context, crate, source, artifactPath string, res toolchain.Result) {
	if p.ledger == nil {
		return
	}
	now := time.Now()
	rec := registry.Record{
		CrateName:        crate,
		SourceDigest:     fingerprint.Source(source),
		ArtifactPath:     artifactPath,
		BuildID:          uuid.NewString(),
		ToolchainVersion: p.version(ctx),
		StdoutBytes:      int64(len(res.Stdout)),
		StderrBytes:      int64(len(res.Stderr)),
		BuiltAt:          now,
		LastUsedAt:       now,
	}
	if err := p.ledger.RecordBuild(ctx, rec); err != nil {
		p.logger.Warn("ledger record failed", "crate", crate, "err", err)
	}
}

func (p *Pipeline) touchLedger(ctx context.Context, crate string) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.TouchReuse(ctx, crate, time.Now()); err != nil {
		p.logger.Warn("ledger touch failed", "crate", crate, "err", err)
	}
}
