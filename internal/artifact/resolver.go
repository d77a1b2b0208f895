// Package artifact locates built dynamic libraries inside a workspace.
package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferricite/rustjit/internal/platform"
	"github.com/ferricite/rustjit/internal/workspace"
)

// NotFoundError reports that a build claimed success but no matching
// library exists anywhere in the release-output subtree. Permanent: no
// retry is attempted at this layer.
type NotFoundError struct {
	// LibName is the platform library filename that was searched for.
	LibName string

	// Searched lists every path examined, primary location first.
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %s not found (searched %s)", e.LibName, strings.Join(e.Searched, ", "))
}

// Resolve returns the path of the built dynamic library for a crate.
//
// The primary lookup is the conventional release-output location. If
// that file is absent, the release subtree is walked for a basename
// match to accommodate toolchain layouts that nest output under extra
// namespacing (workspace targets, custom target triples).
func Resolve(dir, crateName string) (string, error) {
	libName := platform.HostLibraryName(crateName)
	release := filepath.Join(dir, filepath.FromSlash(workspace.ReleaseDir))
	primary := filepath.Join(release, libName)

	if _, err := os.Stat(primary); err == nil {
		return primary, nil
	}

	var found string
	walkErr := filepath.WalkDir(release, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// An unreadable or missing subtree just means nothing to
			// find there.
			return fs.SkipDir
		}
		if !d.IsDir() && d.Name() == libName {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if walkErr == nil && found != "" {
		return found, nil
	}

	return "", &NotFoundError{LibName: libName, Searched: []string{primary, release}}
}
