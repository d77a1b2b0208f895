//go:build windows

package ffi

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// dlopen loads the library at path into the process.
func dlopen(path string) (uintptr, error) {
	handle, err := windows.LoadLibrary(path)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}
	return uintptr(handle), nil
}

// dlsym resolves a symbol address, or 0 with an error if absent.
func dlsym(handle uintptr, symbol string) (uintptr, error) {
	addr, err := windows.GetProcAddress(windows.Handle(handle), symbol)
	if err != nil {
		return 0, err
	}
	return addr, nil
}
