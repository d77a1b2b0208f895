package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferricite/rustjit/internal/ffi"
	"github.com/ferricite/rustjit/internal/registry"
	"github.com/ferricite/rustjit/internal/testutil"
	"github.com/ferricite/rustjit/internal/workspace"
)

const adderSource = `#[no_mangle]
pub extern "C" fn add_i32(a: i32, b: i32) -> i32 { a + b }
`

// fakeBinder resolves symbols from a fixed set without loading native
// code.
type fakeBinder struct {
	symbols map[string]bool
	binds   int
}

type fakeFunction struct{ symbol string }

func (f fakeFunction) Call(args ...any) (any, error) { return nil, nil }

func (b *fakeBinder) Bind(artifactPath, symbol string, sig ffi.Signature) (Function, error) {
	b.binds++
	if _, err := os.Stat(artifactPath); err != nil {
		return nil, fmt.Errorf("load %s: %w", artifactPath, err)
	}
	if !b.symbols[symbol] {
		return nil, fmt.Errorf("%w: %q", ffi.ErrSymbolNotFound, symbol)
	}
	return fakeFunction{symbol: symbol}, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func testPipeline(t *testing.T, opts ...Option) (*Pipeline, *testutil.FakeToolchain, string) {
	t.Helper()
	root := t.TempDir()
	fake := testutil.NewFakeToolchain()
	base := []Option{
		WithRunner(fake),
		WithBinder(&fakeBinder{symbols: map[string]bool{"add_i32": true}}),
		WithLogger(quietLogger()),
		WithLocator(func() (string, error) { return "/usr/bin/cargo", nil }),
	}
	p := New(workspace.NewManager(root), append(base, opts...)...)
	return p, fake, root
}

func adderRequest() Request {
	return Request{
		Source:    adderSource,
		Symbol:    "add_i32",
		Signature: ffi.Signature{Args: []ffi.Type{ffi.I32, ffi.I32}, Ret: ffi.I32},
		CrateName: "adder",
	}
}

func TestBind_IdenticalRequestsBuildOnce(t *testing.T) {
	p, fake, _ := testPipeline(t)
	ctx := context.Background()

	_, err := p.Bind(ctx, adderRequest())
	require.NoError(t, err)

	_, err = p.Bind(ctx, adderRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Invocations())
}

func TestBind_ChangedSourceRebuildsOnce(t *testing.T) {
	p, fake, _ := testPipeline(t)
	ctx := context.Background()

	_, err := p.Bind(ctx, adderRequest())
	require.NoError(t, err)

	changed := adderRequest()
	changed.Source = adderSource + "// v2\n"

	_, err = p.Bind(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Invocations())

	// The superseded source is gone from the cache.
	_, err = p.Bind(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Invocations())
}

func TestBind_DerivedCrateNameIsStable(t *testing.T) {
	p, fake, _ := testPipeline(t)
	ctx := context.Background()

	req := adderRequest()
	req.CrateName = ""

	_, err := p.Bind(ctx, req)
	require.NoError(t, err)
	_, err = p.Bind(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Invocations())
}

func TestBind_MissingToolchainPrecedesWorkspaceWrites(t *testing.T) {
	p, fake, root := testPipeline(t, WithLocator(func() (string, error) {
		return "", fmt.Errorf("cargo not found in PATH")
	}))

	_, err := p.Bind(context.Background(), adderRequest())
	require.Error(t, err)
	assert.True(t, IsToolchainMissing(err))

	// No workspace directory may exist and the compiler never ran.
	_, statErr := os.Stat(filepath.Join(root, "adder"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Zero(t, fake.Invocations())
}

func TestBind_CompilationFailureSurfacesStderr(t *testing.T) {
	p, fake, _ := testPipeline(t)
	fake.FailStderr = "error[E0425]: cannot find value `x` in this scope"

	_, err := p.Bind(context.Background(), adderRequest())
	require.Error(t, err)
	assert.True(t, IsCompilationFailed(err))
	assert.Contains(t, err.Error(), "error[E0425]")
}

func TestBind_SilentToolchainIsArtifactNotFound(t *testing.T) {
	p, _, _ := testPipeline(t, WithRunner(testutil.SilentToolchain{}))

	_, err := p.Bind(context.Background(), adderRequest())
	require.Error(t, err)
	assert.True(t, IsArtifactNotFound(err))
	assert.Contains(t, err.Error(), "target")
}

func TestBind_UnknownSymbol(t *testing.T) {
	p, _, _ := testPipeline(t)

	req := adderRequest()
	req.Symbol = "does_not_exist"

	_, err := p.Bind(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsSymbolNotFound(err))
	assert.Contains(t, err.Error(), "does_not_exist")
}

func TestBind_InvalidSignatureRejectedEarly(t *testing.T) {
	p, fake, _ := testPipeline(t)

	req := adderRequest()
	req.Signature = ffi.Signature{Args: []ffi.Type{ffi.Void}, Ret: ffi.I32}

	_, err := p.Bind(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsUnsupportedInvocation(err))
	assert.Zero(t, fake.Invocations())
}

func TestBind_EmptySymbolRejected(t *testing.T) {
	p, _, _ := testPipeline(t)

	req := adderRequest()
	req.Symbol = ""

	_, err := p.Bind(context.Background(), req)
	assert.True(t, IsUnsupportedInvocation(err))
}

func TestBind_ConcurrentSameCrateBuildsOnce(t *testing.T) {
	p, fake, _ := testPipeline(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Bind(context.Background(), adderRequest())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fake.Invocations())
}

func TestBind_RecordsLedger(t *testing.T) {
	ledger, err := registry.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	p, _, _ := testPipeline(t, WithLedger(ledger))
	ctx := context.Background()

	_, err = p.Bind(ctx, adderRequest())
	require.NoError(t, err)

	rec, err := ledger.Get(ctx, "adder")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.BuildID)
	assert.Zero(t, rec.ReuseCount)

	// A cache hit bumps the reuse counter instead of rewriting the row.
	_, err = p.Bind(ctx, adderRequest())
	require.NoError(t, err)

	rec, err = ledger.Get(ctx, "adder")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ReuseCount)
}
