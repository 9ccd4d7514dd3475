// Package checksum computes the content hash stamped on each loaded
// migration script, so callbacks and audit logs can fingerprint a
// script without carrying its full body.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// SHA256 hashes b and returns its lowercase hex digest.
func SHA256(b []byte) string {
	h := newHasher()
	h.Write(b)
	return digest(h)
}

// Verify reports whether b hashes to want. Callers compare against a
// checksum captured at load time to detect a script edited mid-run.
func Verify(b []byte, want string) bool {
	return SHA256(b) == want
}

// Short returns the first n hex characters of SHA256(b), or the full
// digest if n exceeds its length. Useful for log fields where the
// full 64-character digest is noise.
func Short(b []byte, n int) string {
	full := SHA256(b)
	if n >= len(full) {
		return full
	}
	return full[:n]
}

func newHasher() hash.Hash {
	return sha256.New()
}

func digest(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
