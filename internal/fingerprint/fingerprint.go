// Package fingerprint computes content digests for source text.
//
// The digest is the default identity for a compilation unit when the
// caller supplies no explicit crate name. It is a naming convenience,
// not a security primitive: the truncation keeps directory and crate
// names human-readable while remaining collision-resistant enough that
// two different sources get different names with overwhelming
// probability.
package fingerprint

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// DigestLen is the number of hex characters in a source digest.
const DigestLen = 12

// Source returns the truncated hex digest of the given source text.
//
// Deterministic: identical inputs always produce identical digests.
func Source(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:DigestLen]
}

// CrateName returns the default crate name for unnamed source text.
//
// Crate names must be valid identifiers for the toolchain, so the
// digest is prefixed rather than used bare (a digest may start with a
// digit).
func CrateName(text string) string {
	return "rustjit_" + Source(text)
}
