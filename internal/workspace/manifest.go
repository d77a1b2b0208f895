package workspace

import "fmt"

// RenderManifest produces the Cargo.toml for a cached crate.
//
// The manifest is machine-written on every rebuild and never hand-edited;
// it declares the crate as a cdylib so the build emits a dynamic library
// loadable into the host process.
func RenderManifest(crateName string) string {
	return fmt.Sprintf(`[package]
name = %q
version = "0.1.0"
edition = "2021"

[lib]
name = %q
crate-type = ["cdylib"]
`, crateName, crateName)
}
