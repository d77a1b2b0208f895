package ffi

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ebitengine/purego"
)

// ErrSymbolNotFound marks a bind attempt against an exported name the
// artifact does not contain.
var ErrSymbolNotFound = errors.New("symbol not found")

// ErrUnsupportedInvocation marks a call whose shape the bound signature
// cannot express (wrong arity, unconvertible argument). Reported before
// the artifact is touched.
var ErrUnsupportedInvocation = errors.New("unsupported invocation")

// Library is a dynamic library loaded into the current process.
//
// Libraries are never unloaded: once loaded, the mapping lives for the
// life of the process. Reloading the same path is assumed idempotent
// and cheap; the platform loader de-duplicates.
type Library struct {
	path   string
	handle uintptr
}

// Open loads the dynamic library at path into the current process.
func Open(path string) (*Library, error) {
	handle, err := dlopen(path)
	if err != nil {
		return nil, err
	}
	return &Library{path: path, handle: handle}, nil
}

// Path returns the artifact path this library was loaded from.
func (l *Library) Path() string { return l.path }

// Bind resolves symbol within the library and binds it to the declared
// signature.
//
// A missing symbol wraps ErrSymbolNotFound and carries the export
// requirements in its message. The signature itself is trusted, not
// verified (see the package comment).
func (l *Library) Bind(symbol string, sig Signature) (*BoundFunction, error) {
	ftype, err := sig.funcType()
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", symbol, err)
	}

	addr, err := dlsym(l.handle, symbol)
	if err != nil || addr == 0 {
		return nil, fmt.Errorf(
			"%w: %q in %s (the function must be exported as #[no_mangle] pub extern \"C\" fn %s(...))",
			ErrSymbolNotFound, symbol, l.path, symbol)
	}

	// purego builds a call stub for the reflect-constructed function
	// type; argument and return marshaling happen per call.
	fptr := reflect.New(ftype)
	purego.RegisterFunc(fptr.Interface(), addr)

	return &BoundFunction{
		lib:    l,
		symbol: symbol,
		sig:    sig,
		fn:     fptr.Elem(),
	}, nil
}

// BoundFunction is an invokable handle over one exported symbol. It
// owns a reference to the library's in-process load and stays valid for
// the life of the process.
type BoundFunction struct {
	lib    *Library
	symbol string
	sig    Signature
	fn     reflect.Value
}

// Symbol returns the exported name this handle is bound to.
func (f *BoundFunction) Symbol() string { return f.symbol }

// Signature returns the declared signature.
func (f *BoundFunction) Signature() Signature { return f.sig }

// Call invokes the native function with positional arguments in
// declared order.
//
// Arguments are marshaled per call: Go integer values for the integer
// descriptors, floats for f32/f64, bool, uintptr for ptr, string for
// cstring. Arity or type mismatches wrap ErrUnsupportedInvocation and
// are reported without touching the artifact. The return value is
// typed per the declared return descriptor, or nil for void.
func (f *BoundFunction) Call(args ...any) (any, error) {
	if len(args) != len(f.sig.Args) {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d",
			ErrUnsupportedInvocation, f.symbol, len(f.sig.Args), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		want, _ := f.sig.Args[i].goType()
		v, err := coerce(arg, f.sig.Args[i], want)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v",
				ErrUnsupportedInvocation, f.symbol, i, err)
		}
		in[i] = v
	}

	out := f.fn.Call(in)
	if f.sig.Ret == Void || len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// coerce converts a caller-supplied value to the marshaling type of a
// descriptor. Conversions stay within a type family: integers to
// integer descriptors, integers and floats to float descriptors,
// strings (or byte slices) to cstring. Anything else is rejected
// rather than silently reinterpreted.
func coerce(arg any, desc Type, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		if desc == Ptr {
			return reflect.ValueOf(uintptr(0)), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", desc)
	}

	v := reflect.ValueOf(arg)
	if v.Type() == want {
		return v, nil
	}

	switch desc {
	case I8, I16, I32, I64, U8, U16, U32, U64:
		if isInteger(v.Kind()) {
			return v.Convert(want), nil
		}
	case F32, F64:
		if isInteger(v.Kind()) || v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64 {
			return v.Convert(want), nil
		}
	case Ptr:
		switch v.Kind() {
		case reflect.Uintptr, reflect.UnsafePointer:
			return v.Convert(want), nil
		}
		if isInteger(v.Kind()) {
			return v.Convert(want), nil
		}
	case CString:
		if b, ok := arg.([]byte); ok {
			return reflect.ValueOf(string(b)), nil
		}
	case Bool:
		// Exact match handled above; nothing else converts.
	}
	return reflect.Value{}, fmt.Errorf("cannot pass %T as %s", arg, desc)
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
