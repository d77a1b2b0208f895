package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSource_Deterministic verifies the same text always hashes to the
// same digest.
func TestSource_Deterministic(t *testing.T) {
	src := `#[no_mangle] pub extern "C" fn add(a: i32, b: i32) -> i32 { a + b }`

	first := Source(src)
	second := Source(src)

	assert.Equal(t, first, second)
}

// TestSource_DistinctInputs verifies distinct sources in a small corpus
// get distinct digests. Probabilistic in principle, but a collision
// here would indicate a broken hash.
func TestSource_DistinctInputs(t *testing.T) {
	corpus := []string{
		"",
		"fn main() {}",
		"fn main() {} ",
		"fn main() {}\n",
		`#[no_mangle] pub extern "C" fn add(a: i32, b: i32) -> i32 { a + b }`,
		`#[no_mangle] pub extern "C" fn add(a: i32, b: i32) -> i32 { a - b }`,
	}

	seen := make(map[string]string, len(corpus))
	for _, src := range corpus {
		d := Source(src)
		prev, dup := seen[d]
		require.False(t, dup, "digest collision between %q and %q", prev, src)
		seen[d] = src
	}
}

// TestSource_Width verifies the digest is a fixed-width lowercase hex
// string suitable for directory names.
func TestSource_Width(t *testing.T) {
	d := Source("anything")
	assert.Len(t, d, DigestLen)
	assert.Regexp(t, "^[0-9a-f]+$", d)
}

// TestCrateName_IdentifierSafe verifies the default crate name is a
// valid identifier even when the digest starts with a digit.
func TestCrateName_IdentifierSafe(t *testing.T) {
	name := CrateName("fn main() {}")
	assert.Regexp(t, "^rustjit_[0-9a-f]{12}$", name)
}
