package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLibraryName_PerOS(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "libfoo.so"},
		{"darwin", "libfoo.dylib"},
		{"windows", "foo.dll"},
		{"freebsd", "libfoo.so"},
		// Unknown platforms fall back to the Unix convention.
		{"plan9", "libfoo.so"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			assert.Equal(t, tt.want, LibraryName(tt.goos, "foo"))
		})
	}
}

func TestHostLibraryName_MatchesHostConvention(t *testing.T) {
	// Whatever the host is, the two entry points must agree.
	got := HostLibraryName("adder")
	assert.Contains(t, []string{"libadder.so", "libadder.dylib", "adder.dll"}, got)
}
