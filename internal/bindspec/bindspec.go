// Package bindspec loads and validates bind descriptor files.
//
// A descriptor is a small YAML document naming one Rust source unit,
// the exported symbol to bind, and its declared signature. Descriptors
// are validated against an embedded CUE schema before use, so malformed
// files fail with positioned diagnostics instead of surfacing later as
// a confusing build or bind failure.
package bindspec

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/ferricite/rustjit/internal/ffi"
)

//go:embed schema.cue
var schemaCUE string

// Spec is one parsed bind descriptor.
type Spec struct {
	// Name optionally pins the crate name.
	Name string `yaml:"name"`

	// Source is the inline Rust source text. Mutually exclusive with
	// SourceFile; after Load, Source is always populated.
	Source string `yaml:"source"`

	// SourceFile is a path to the Rust source, relative to the
	// descriptor file.
	SourceFile string `yaml:"source_file"`

	// Symbol is the exported function to bind.
	Symbol string `yaml:"symbol"`

	// Args and Return are type descriptor names ("i32", "cstring", ...).
	Args   []string `yaml:"args"`
	Return string   `yaml:"return"`

	// CargoArgs are extra build flags.
	CargoArgs []string `yaml:"cargo_args"`

	// Calls holds positional argument lists for the call command.
	Calls [][]any `yaml:"calls"`
}

// Load reads, validates, and parses the descriptor at path.
//
// When the descriptor uses source_file, the referenced file is read and
// inlined, so the returned Spec always carries the source text.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bind spec: %w", err)
	}

	if err := validate(path, data); err != nil {
		return nil, err
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse bind spec %s: %w", path, err)
	}

	switch {
	case spec.Source != "" && spec.SourceFile != "":
		return nil, fmt.Errorf("%s: source and source_file are mutually exclusive", path)
	case spec.Source == "" && spec.SourceFile == "":
		return nil, fmt.Errorf("%s: one of source or source_file is required", path)
	case spec.SourceFile != "":
		src, err := os.ReadFile(filepath.Join(filepath.Dir(path), spec.SourceFile))
		if err != nil {
			return nil, fmt.Errorf("read source_file: %w", err)
		}
		spec.Source = string(src)
	}

	return &spec, nil
}

// validate unifies the document with the embedded schema.
func validate(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile bind spec schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("parse bind spec %s: %w", filename, err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse bind spec %s: %w", filename, err)
	}

	unified := schema.LookupPath(cue.MakePath(cue.Def("#BindSpec"))).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid bind spec %s:\n%s", filename,
			cueerrors.Details(err, nil))
	}
	return nil
}

// Signature converts the descriptor's type names to an ffi.Signature.
func (s *Spec) Signature() (ffi.Signature, error) {
	sig := ffi.Signature{Ret: ffi.Void}
	for i, name := range s.Args {
		t, err := ffi.ParseType(name)
		if err != nil {
			return ffi.Signature{}, fmt.Errorf("argument %d: %w", i, err)
		}
		sig.Args = append(sig.Args, t)
	}
	if s.Return != "" && s.Return != "void" {
		t, err := ffi.ParseType(s.Return)
		if err != nil {
			return ffi.Signature{}, fmt.Errorf("return: %w", err)
		}
		sig.Ret = t
	}
	return sig, nil
}
