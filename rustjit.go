// Package rustjit compiles Rust source text on demand into a cached
// native dynamic library and binds one exported symbol as a typed
// callable.
//
// The cache is content-addressed and disk-resident: a request is keyed
// by its crate name (derived from the source digest when not supplied),
// and an unchanged source with an existing artifact skips the compiler
// entirely. Artifacts persist across process runs until cleaned.
//
// The declared signature is a trust boundary. It is never checked
// against the compiled artifact; binding a symbol with the wrong
// signature is undefined behavior when called.
//
//	fn, err := rustjit.Bind(ctx, rustjit.Request{
//		Source: `#[no_mangle]
//	pub extern "C" fn add_i32(a: i32, b: i32) -> i32 { a + b }`,
//		Symbol:    "add_i32",
//		Signature: rustjit.Signature{Args: []rustjit.Type{rustjit.I32, rustjit.I32}, Ret: rustjit.I32},
//	})
//	if err != nil { ... }
//	sum, err := fn.Call(10, 23) // int32(33)
package rustjit

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ferricite/rustjit/internal/ffi"
	"github.com/ferricite/rustjit/internal/pipeline"
	"github.com/ferricite/rustjit/internal/registry"
	"github.com/ferricite/rustjit/internal/workspace"
)

// Request, Function, and the type descriptors are the caller-facing
// surface of the internal pipeline.
type (
	Request   = pipeline.Request
	Function  = pipeline.Function
	Signature = ffi.Signature
	Type      = ffi.Type
)

// Primitive type descriptors for signatures.
const (
	Void    = ffi.Void
	I8      = ffi.I8
	I16     = ffi.I16
	I32     = ffi.I32
	I64     = ffi.I64
	U8      = ffi.U8
	U16     = ffi.U16
	U32     = ffi.U32
	U64     = ffi.U64
	F32     = ffi.F32
	F64     = ffi.F64
	Bool    = ffi.Bool
	Ptr     = ffi.Ptr
	CString = ffi.CString
)

// Failure classification helpers for errors returned by Bind.
var (
	IsToolchainMissing      = pipeline.IsToolchainMissing
	IsCompilationFailed     = pipeline.IsCompilationFailed
	IsArtifactNotFound      = pipeline.IsArtifactNotFound
	IsSymbolNotFound        = pipeline.IsSymbolNotFound
	IsUnsupportedInvocation = pipeline.IsUnsupportedInvocation
)

// DefaultCacheDir returns the cache root used when none is configured.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), "rustjit")
}

// Engine is a configured compilation cache. Safe for concurrent use;
// requests for the same crate name are serialized internally.
type Engine struct {
	pipe   *pipeline.Pipeline
	ledger *registry.Registry
}

// config collects option state before the engine is assembled.
type config struct {
	cacheDir string
	logger   *log.Logger
	ledger   bool
}

// Option configures an Engine.
type Option func(*config)

// WithCacheDir sets the workspace root. The directory is created on
// first use.
func WithCacheDir(dir string) Option {
	return func(c *config) { c.cacheDir = dir }
}

// WithLogger sets the structured logger. The default discards output;
// the library is quiet unless asked otherwise.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithoutLedger disables the SQLite build ledger.
func WithoutLedger() Option {
	return func(c *config) { c.ledger = false }
}

// NewEngine assembles an engine from options.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := &config{
		cacheDir: DefaultCacheDir(),
		logger:   log.New(io.Discard),
		ledger:   true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Engine{}
	pipeOpts := []pipeline.Option{pipeline.WithLogger(cfg.logger)}
	if cfg.ledger {
		if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
			return nil, err
		}
		ledger, err := registry.Open(filepath.Join(cfg.cacheDir, "ledger.db"))
		if err != nil {
			return nil, err
		}
		e.ledger = ledger
		pipeOpts = append(pipeOpts, pipeline.WithLedger(ledger))
	}

	e.pipe = pipeline.New(workspace.NewManager(cfg.cacheDir), pipeOpts...)
	return e, nil
}

// Bind compiles (or reuses) the request's source and binds its exported
// symbol. See Request for the cache-identity rules and the package
// comment for the signature trust boundary.
func (e *Engine) Bind(ctx context.Context, req Request) (Function, error) {
	return e.pipe.Bind(ctx, req)
}

// Close releases the engine's ledger handle. Loaded artifacts stay
// mapped for the life of the process regardless.
func (e *Engine) Close() error {
	if e.ledger != nil {
		return e.ledger.Close()
	}
	return nil
}

// Bind is a one-shot convenience over a throwaway engine with the
// default cache directory.
func Bind(ctx context.Context, req Request, opts ...Option) (Function, error) {
	e, err := NewEngine(opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.Bind(ctx, req)
}
