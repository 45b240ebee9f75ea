// Package fingerprint computes content digests for change detection.
//
// A digest is the hex-encoded SHA-256 of the content bytes: deterministic
// across runs and processes, and sensitive to any single-byte change. Digest
// equality is the sole equality proxy between runs — content bytes are never
// re-compared.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex-encoded SHA-256 of content.
// Total over any string, including empty.
func Digest(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Short returns the first 16 hex characters of a digest, for log lines and
// notifications. Returns the whole digest if it is shorter.
func Short(digest string) string {
	if len(digest) <= 16 {
		return digest
	}
	return digest[:16]
}
