//go:build darwin || freebsd || linux

package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// dlopen loads the library at path into the process.
func dlopen(path string) (uintptr, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}
	return handle, nil
}

// dlsym resolves a symbol address, or 0 with an error if absent.
func dlsym(handle uintptr, symbol string) (uintptr, error) {
	addr, err := purego.Dlsym(handle, symbol)
	if err != nil {
		return 0, err
	}
	return addr, nil
}
