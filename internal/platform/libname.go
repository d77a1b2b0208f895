// Package platform maps logical library names to the host operating
// system's dynamic-library filename convention.
package platform

import "runtime"

// LibraryName returns the dynamic-library filename for a logical name
// under the given GOOS.
//
// Unix-like systems prefix "lib" and use an OS-specific suffix; Windows
// uses the bare name with ".dll". Unknown platforms fall back to the
// Linux convention rather than failing: if the guess is wrong the
// artifact search reports it clearly later.
func LibraryName(goos, logical string) string {
	switch goos {
	case "windows":
		return logical + ".dll"
	case "darwin":
		return "lib" + logical + ".dylib"
	default:
		return "lib" + logical + ".so"
	}
}

// HostLibraryName returns LibraryName for the current host OS.
//
// Queried fresh at call time, never persisted: a cache directory moved
// between platforms must resolve against the new host's convention.
func HostLibraryName(logical string) string {
	return LibraryName(runtime.GOOS, logical)
}
