// Package ffi binds exported symbols of a native dynamic library to
// caller-declared signatures.
//
// TRUST BOUNDARY: the declared signature is never verified against the
// compiled artifact. A symbol bound with the wrong argument or return
// types is undefined behavior at call time, not a load-time error. The
// artifact must export the symbol with C linkage (no name mangling) and
// the C calling convention.
package ffi

import (
	"fmt"
	"reflect"
)

// Type is a primitive type descriptor for a foreign function signature.
type Type uint8

const (
	// Void is valid only as a return type.
	Void Type = iota
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Bool
	// Ptr is a pointer-sized opaque value, passed through untouched.
	Ptr
	// CString marshals a Go string to a NUL-terminated C string per
	// call (and back, when used as a return type).
	CString
)

var typeNames = map[Type]string{
	Void: "void", I8: "i8", I16: "i16", I32: "i32", I64: "i64",
	U8: "u8", U16: "u16", U32: "u32", U64: "u64",
	F32: "f32", F64: "f64", Bool: "bool", Ptr: "ptr", CString: "cstring",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType maps a descriptor name ("i32", "f64", "cstring", ...) to
// its Type. Used by the bind-descriptor loader.
func ParseType(name string) (Type, error) {
	if t, ok := typesByName[name]; ok {
		return t, nil
	}
	return Void, fmt.Errorf("unknown type descriptor %q", name)
}

// goType returns the Go representation used for marshaling.
func (t Type) goType() (reflect.Type, error) {
	switch t {
	case I8:
		return reflect.TypeOf(int8(0)), nil
	case I16:
		return reflect.TypeOf(int16(0)), nil
	case I32:
		return reflect.TypeOf(int32(0)), nil
	case I64:
		return reflect.TypeOf(int64(0)), nil
	case U8:
		return reflect.TypeOf(uint8(0)), nil
	case U16:
		return reflect.TypeOf(uint16(0)), nil
	case U32:
		return reflect.TypeOf(uint32(0)), nil
	case U64:
		return reflect.TypeOf(uint64(0)), nil
	case F32:
		return reflect.TypeOf(float32(0)), nil
	case F64:
		return reflect.TypeOf(float64(0)), nil
	case Bool:
		return reflect.TypeOf(false), nil
	case Ptr:
		return reflect.TypeOf(uintptr(0)), nil
	case CString:
		return reflect.TypeOf(""), nil
	default:
		return nil, fmt.Errorf("type %s has no argument representation", t)
	}
}

// Signature describes one exported native function: ordered positional
// argument types and a single return type (Void for none).
type Signature struct {
	Args []Type
	Ret  Type
}

// Validate rejects signatures the calling convention cannot express.
func (s Signature) Validate() error {
	for i, a := range s.Args {
		if a == Void {
			return fmt.Errorf("argument %d: void is not a valid argument type", i)
		}
		if _, err := a.goType(); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	if s.Ret != Void {
		if _, err := s.Ret.goType(); err != nil {
			return fmt.Errorf("return: %w", err)
		}
	}
	return nil
}

// funcType builds the reflect function type matching the signature.
func (s Signature) funcType() (reflect.Type, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	in := make([]reflect.Type, len(s.Args))
	for i, a := range s.Args {
		t, _ := a.goType()
		in[i] = t
	}
	var out []reflect.Type
	if s.Ret != Void {
		t, _ := s.Ret.goType()
		out = []reflect.Type{t}
	}
	return reflect.FuncOf(in, out, false), nil
}
